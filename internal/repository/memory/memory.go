// Package memory keeps assets in a mutex-guarded map. It backs tests and the
// "memory" database driver for local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"

	"github.com/google/uuid"
)

type Store struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]*domain.Asset
}

func NewStore() *Store {
	return &Store{assets: make(map[uuid.UUID]*domain.Asset)}
}

var _ repository.AssetRepository = (*Store)(nil)

func (s *Store) Create(ctx context.Context, asset *domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[asset.ID]; ok {
		return fmt.Errorf("asset %s already exists: %w", asset.ID, domain.ErrVersionConflict)
	}
	s.assets[asset.ID] = asset.Clone()
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
	}
	return a.Clone(), nil
}

func (s *Store) CompareAndSwap(ctx context.Context, next *domain.Asset, expectedVersion int64, companions ...*domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.assets[next.ID]
	if !ok {
		return fmt.Errorf("asset %s: %w", next.ID, domain.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("asset %s at version %d, expected %d: %w",
			next.ID, current.Version, expectedVersion, domain.ErrVersionConflict)
	}
	for _, c := range companions {
		if _, exists := s.assets[c.ID]; exists {
			return fmt.Errorf("asset %s already exists: %w", c.ID, domain.ErrVersionConflict)
		}
	}

	s.assets[next.ID] = next.Clone()
	for _, c := range companions {
		s.assets[c.ID] = c.Clone()
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter repository.AssetFilter) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]domain.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		if filter.Matches(a) {
			assets = append(assets, *a.Clone())
		}
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].ID.String() > assets[j].ID.String()
		}
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})
	return assets, nil
}

func (s *Store) CountAssignedByOwner(ctx context.Context) ([]domain.CustodianSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, a := range s.assets {
		if a.Status == domain.AssetStatusAssigned && a.Owner != nil {
			counts[*a.Owner]++
		}
	}
	summaries := make([]domain.CustodianSummary, 0, len(counts))
	for owner, n := range counts {
		summaries = append(summaries, domain.CustodianSummary{Owner: owner, AssignedCount: n})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Owner < summaries[j].Owner })
	return summaries, nil
}
