// Package sqlite is the single-node asset store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

const assetColumns = `id, asset_type, title, description, photo_ref, status, owner, pending_user, linked_asset, action_type, rating_before, rating_after, created_at, version`

type Store struct {
	sqlDB *sql.DB
}

var _ repository.AssetRepository = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" yields a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if path != ":memory:" {
		path = filepath.Clean(path)
	}
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serialises writers and keeps :memory: a single database.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var (
		a                      domain.Asset
		id, status, actionType string
		owner, requester       sql.NullString
		linked                 sql.NullString
		before, after          sql.NullInt64
		createdAt              int64
	)
	err := row.Scan(&id, &a.AssetType, &a.Title, &a.Description, &a.PhotoRef, &status,
		&owner, &requester, &linked, &actionType, &before, &after, &createdAt, &a.Version)
	if err != nil {
		return nil, err
	}
	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse asset id %q: %w", id, err)
	}
	a.Status = domain.AssetStatus(status)
	a.ActionType = domain.ActionType(actionType)
	a.CreatedAt = fromMillis(createdAt)
	if owner.Valid {
		a.Owner = &owner.String
	}
	if requester.Valid {
		a.Requester = &requester.String
	}
	if linked.Valid {
		ref, err := uuid.Parse(linked.String)
		if err != nil {
			return nil, fmt.Errorf("parse linked asset %q: %w", linked.String, err)
		}
		a.LinkedAsset = &ref
	}
	if before.Valid {
		a.RatingBefore = domain.IntPtr(int(before.Int64))
	}
	if after.Valid {
		a.RatingAfter = domain.IntPtr(int(after.Int64))
	}
	return &a, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAsset(ctx context.Context, db execer, a *domain.Asset) error {
	query := `INSERT INTO assets (` + assetColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, a.ID.String(), a.AssetType, a.Title, a.Description, a.PhotoRef,
		string(a.Status), nullString(a.Owner), nullString(a.Requester), nullUUID(a.LinkedAsset),
		string(a.ActionType), nullInt(a.RatingBefore), nullInt(a.RatingAfter), toMillis(a.CreatedAt), a.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("asset %s already exists: %w", a.ID, domain.ErrVersionConflict)
		}
		return fmt.Errorf("insert asset %s: %w", a.ID, err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, a *domain.Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return insertAsset(ctx, s.sqlDB, a)
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = ?`
	a, err := scanAsset(s.sqlDB.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, next *domain.Asset, expectedVersion int64, companions ...*domain.Asset) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE assets SET asset_type = ?, title = ?, description = ?, photo_ref = ?, status = ?,
	          owner = ?, pending_user = ?, linked_asset = ?, action_type = ?, rating_before = ?,
	          rating_after = ?, version = ?
	          WHERE id = ? AND version = ?`
	res, err := tx.ExecContext(ctx, query, next.AssetType, next.Title, next.Description, next.PhotoRef,
		string(next.Status), nullString(next.Owner), nullString(next.Requester), nullUUID(next.LinkedAsset),
		string(next.ActionType), nullInt(next.RatingBefore), nullInt(next.RatingAfter), next.Version,
		next.ID.String(), expectedVersion)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", next.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset %s: %w", next.ID, err)
	}
	if n == 0 {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM assets WHERE id = ?`, next.ID.String()).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("asset %s: %w", next.ID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("probe asset %s: %w", next.ID, err)
		}
		return fmt.Errorf("asset %s at version %d, expected %d: %w",
			next.ID, current, expectedVersion, domain.ErrVersionConflict)
	}

	for _, c := range companions {
		if err := insertAsset(ctx, tx, c); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter repository.AssetFilter) ([]domain.Asset, error) {
	var (
		where []string
		args  []any
	)
	if filter.Party != "" {
		where = append(where, "(owner = ? OR pending_user = ?)")
		args = append(args, filter.Party, filter.Party)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedBefore.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, toMillis(filter.CreatedBefore))
	}

	query := `SELECT ` + assetColumns + ` FROM assets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
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
	return assets, rows.Err()
}

func (s *Store) CountAssignedByOwner(ctx context.Context) ([]domain.CustodianSummary, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT owner, count(*) FROM assets
		WHERE status = 'assigned' AND owner IS NOT NULL GROUP BY owner ORDER BY owner`)
	if err != nil {
		return nil, fmt.Errorf("count custodians: %w", err)
	}
	defer rows.Close()

	var summaries []domain.CustodianSummary
	for rows.Next() {
		var cs domain.CustodianSummary
		if err := rows.Scan(&cs.Owner, &cs.AssignedCount); err != nil {
			return nil, fmt.Errorf("scan custodian: %w", err)
		}
		summaries = append(summaries, cs)
	}
	return summaries, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
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

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}
