package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"

	"custody-backend/internal/artifact"
	"custody-backend/internal/domain"
	"custody-backend/internal/policy"
	"custody-backend/internal/repository"
	"custody-backend/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type artifactService struct {
	assets  repository.AssetRepository
	deriver *artifact.Deriver
	cache   storage.Storage
	tracer  trace.Tracer
}

// NewArtifactService serves derived codes. cache may be nil, in which case
// every request renders afresh.
func NewArtifactService(assets repository.AssetRepository, deriver *artifact.Deriver, cache storage.Storage) ArtifactService {
	return &artifactService{
		assets:  assets,
		deriver: deriver,
		cache:   cache,
		tracer:  otel.Tracer("custody-backend/service/artifact"),
	}
}

func (s *artifactService) Artifact(ctx context.Context, caller domain.Caller, id uuid.UUID) (artifact.Code, bool, error) {
	ctx, span := s.tracer.Start(ctx, "artifact.derive",
		trace.WithAttributes(attribute.String("asset.id", id.String())))
	defer span.End()

	asset, err := s.load(ctx, caller, id)
	if err != nil {
		span.RecordError(err)
		return artifact.Code{}, false, err
	}
	code, ok, err := s.code(ctx, asset)
	span.SetAttributes(attribute.Bool("artifact.available", ok))
	return code, ok, err
}

func (s *artifactService) ArtifactDocument(ctx context.Context, caller domain.Caller, id uuid.UUID) ([]byte, bool, error) {
	ctx, span := s.tracer.Start(ctx, "artifact.document",
		trace.WithAttributes(attribute.String("asset.id", id.String())))
	defer span.End()

	asset, err := s.load(ctx, caller, id)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	code, ok, err := s.code(ctx, asset)
	if err != nil || !ok {
		return nil, ok, err
	}
	var buf bytes.Buffer
	if err := artifact.Document(&buf, code, asset); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

func (s *artifactService) load(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Asset, error) {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(caller, asset) {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	return asset, nil
}

// code renders through the cache. Entries are keyed by the encoded content
// and size, so a cached PNG is always the one Derive would produce.
func (s *artifactService) code(ctx context.Context, asset *domain.Asset) (artifact.Code, bool, error) {
	if !artifact.Available(asset) {
		return artifact.Code{}, false, nil
	}
	if s.cache == nil {
		return s.deriver.Derive(asset)
	}

	content := s.deriver.Locator.Locate(asset.ID)
	key := cacheKey(content, s.deriver.Size)
	if png, err := s.readCached(ctx, key); err != nil {
		return artifact.Code{}, false, err
	} else if len(png) > 0 {
		return artifact.Code{Content: content, PNG: png}, true, nil
	}

	code, ok, err := s.deriver.Derive(asset)
	if err != nil || !ok {
		return code, ok, err
	}
	if err := s.cache.Save(ctx, key, bytes.NewReader(code.PNG)); err != nil {
		return artifact.Code{}, false, fmt.Errorf("cache artifact for asset %s: %w", asset.ID, err)
	}
	return code, true, nil
}

func (s *artifactService) readCached(ctx context.Context, key string) ([]byte, error) {
	r, err := s.cache.Open(ctx, key)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached artifact: %w", err)
	}
	defer r.Close()
	png, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read cached artifact: %w", err)
	}
	return png, nil
}

func cacheKey(content string, size int) string {
	sum := sha256.Sum256([]byte(content + "\x00" + strconv.Itoa(size)))
	return "artifacts/qr/" + hex.EncodeToString(sum[:]) + ".png"
}
