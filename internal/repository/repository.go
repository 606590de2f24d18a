package repository

import (
	"context"
	"time"

	"custody-backend/internal/domain"

	"github.com/google/uuid"
)

// AssetFilter narrows List. The zero value matches every record.
type AssetFilter struct {
	// Party matches records where the identity is owner or requester.
	Party string
	// Status matches records currently in that status.
	Status domain.AssetStatus
	// CreatedBefore matches records created strictly before the instant.
	CreatedBefore time.Time
}

// Matches applies the filter to one record. Stores that cannot push the
// filter into a query use it directly.
func (f AssetFilter) Matches(a *domain.Asset) bool {
	if f.Party != "" {
		owner := a.Owner != nil && *a.Owner == f.Party
		requester := a.Requester != nil && *a.Requester == f.Party
		if !owner && !requester {
			return false
		}
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if !f.CreatedBefore.IsZero() && !a.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

type AssetRepository interface {
	// Create inserts a new record. A duplicate id reports domain.ErrVersionConflict.
	Create(ctx context.Context, asset *domain.Asset) error
	// GetByID reports domain.ErrNotFound when no record has the id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	// CompareAndSwap replaces the record with next iff its stored version is
	// still expectedVersion, and inserts companions in the same atomic unit.
	// A stale version reports domain.ErrVersionConflict, a missing record
	// domain.ErrNotFound; in both cases nothing is written.
	CompareAndSwap(ctx context.Context, next *domain.Asset, expectedVersion int64, companions ...*domain.Asset) error
	// List returns matching records, newest first.
	List(ctx context.Context, filter AssetFilter) ([]domain.Asset, error)
	// CountAssignedByOwner summarises current custodians, ordered by owner.
	CountAssignedByOwner(ctx context.Context) ([]domain.CustodianSummary, error)
}
