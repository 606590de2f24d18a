package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const assetColumns = `id, asset_type, title, description, photo_ref, status, owner, pending_user, linked_asset, action_type, rating_before, rating_after, created_at, version`

const uniqueViolation = "23505"

type assetRepository struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewAssetRepository(db *sql.DB) repository.AssetRepository {
	return &assetRepository{
		db:     db,
		tracer: otel.Tracer("custody-backend/repository/postgres"),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var (
		a                  domain.Asset
		status, actionType string
		owner, requester   sql.NullString
		linked             uuid.NullUUID
		before, after      sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.AssetType, &a.Title, &a.Description, &a.PhotoRef, &status,
		&owner, &requester, &linked, &actionType, &before, &after, &a.CreatedAt, &a.Version)
	if err != nil {
		return nil, err
	}
	a.Status = domain.AssetStatus(status)
	a.ActionType = domain.ActionType(actionType)
	a.CreatedAt = a.CreatedAt.UTC()
	if owner.Valid {
		a.Owner = &owner.String
	}
	if requester.Valid {
		a.Requester = &requester.String
	}
	if linked.Valid {
		a.LinkedAsset = &linked.UUID
	}
	if before.Valid {
		a.RatingBefore = domain.IntPtr(int(before.Int64))
	}
	if after.Valid {
		a.RatingAfter = domain.IntPtr(int(after.Int64))
	}
	return &a, nil
}

func (r *assetRepository) Create(ctx context.Context, a *domain.Asset) error {
	ctx, span := r.tracer.Start(ctx, "assets.create",
		trace.WithAttributes(attribute.String("asset.id", a.ID.String())))
	defer span.End()

	if err := insertAsset(ctx, r.db, a); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAsset(ctx context.Context, db execer, a *domain.Asset) error {
	query := `INSERT INTO assets (` + assetColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := db.ExecContext(ctx, query, a.ID, a.AssetType, a.Title, a.Description, a.PhotoRef,
		string(a.Status), nullString(a.Owner), nullString(a.Requester), nullUUID(a.LinkedAsset),
		string(a.ActionType), nullInt(a.RatingBefore), nullInt(a.RatingAfter), a.CreatedAt, a.Version)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("asset %s already exists: %w", a.ID, domain.ErrVersionConflict)
		}
		return fmt.Errorf("insert asset %s: %w", a.ID, err)
	}
	return nil
}

func (r *assetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	ctx, span := r.tracer.Start(ctx, "assets.get",
		trace.WithAttributes(attribute.String("asset.id", id.String())))
	defer span.End()

	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	a, err := scanAsset(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	return a, nil
}

func (r *assetRepository) CompareAndSwap(ctx context.Context, next *domain.Asset, expectedVersion int64, companions ...*domain.Asset) error {
	ctx, span := r.tracer.Start(ctx, "assets.compare_and_swap",
		trace.WithAttributes(
			attribute.String("asset.id", next.ID.String()),
			attribute.Int64("expected.version", expectedVersion),
			attribute.Int("companion.count", len(companions)),
		),
	)
	defer span.End()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE assets SET asset_type=$1, title=$2, description=$3, photo_ref=$4, status=$5,
	          owner=$6, pending_user=$7, linked_asset=$8, action_type=$9, rating_before=$10,
	          rating_after=$11, version=$12
	          WHERE id=$13 AND version=$14`
	res, err := tx.ExecContext(ctx, query, next.AssetType, next.Title, next.Description, next.PhotoRef,
		string(next.Status), nullString(next.Owner), nullString(next.Requester), nullUUID(next.LinkedAsset),
		string(next.ActionType), nullInt(next.RatingBefore), nullInt(next.RatingAfter), next.Version,
		next.ID, expectedVersion)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update asset %s: %w", next.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset %s: %w", next.ID, err)
	}
	if n == 0 {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM assets WHERE id = $1`, next.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("asset %s: %w", next.ID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("probe asset %s: %w", next.ID, err)
		}
		span.SetAttributes(
			attribute.Int64("actual.version", current),
			attribute.Bool("conflict.detected", true),
		)
		span.SetStatus(codes.Error, "version conflict")
		return fmt.Errorf("asset %s at version %d, expected %d: %w",
			next.ID, current, expectedVersion, domain.ErrVersionConflict)
	}

	for _, c := range companions {
		if err := insertAsset(ctx, tx, c); err != nil {
			span.RecordError(err)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *assetRepository) List(ctx context.Context, filter repository.AssetFilter) ([]domain.Asset, error) {
	ctx, span := r.tracer.Start(ctx, "assets.list")
	defer span.End()

	var (
		where []string
		args  []any
	)
	if filter.Party != "" {
		args = append(args, filter.Party)
		where = append(where, fmt.Sprintf("(owner = $%d OR pending_user = $%d)", len(args), len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.CreatedBefore.IsZero() {
		args = append(args, filter.CreatedBefore)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + assetColumns + ` FROM assets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	span.SetAttributes(attribute.Int("assets.listed", len(assets)))
	return assets, nil
}

func (r *assetRepository) CountAssignedByOwner(ctx context.Context) ([]domain.CustodianSummary, error) {
	ctx, span := r.tracer.Start(ctx, "assets.count_assigned_by_owner")
	defer span.End()

	query := `SELECT owner, count(*) FROM assets WHERE status = 'assigned' AND owner IS NOT NULL
	          GROUP BY owner ORDER BY owner`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("count custodians: %w", err)
	}
	defer rows.Close()

	var summaries []domain.CustodianSummary
	for rows.Next() {
		var s domain.CustodianSummary
		if err := rows.Scan(&s.Owner, &s.AssignedCount); err != nil {
			return nil, fmt.Errorf("scan custodian: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
