package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"custody-backend/internal/domain"
	"custody-backend/internal/repository"
	"custody-backend/internal/repository/sqlite"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func pendingAsset(requester string, createdAt time.Time) *domain.Asset {
	return &domain.Asset{
		ID:          uuid.New(),
		AssetType:   "laptop",
		Title:       "ThinkPad",
		Description: "14 inch",
		Status:      domain.AssetStatusPending,
		Requester:   domain.StringPtr(requester),
		ActionType:  domain.ActionTypeTake,
		CreatedAt:   createdAt.UTC().Truncate(time.Millisecond),
		Version:     1,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	a := pendingAsset("u1", time.Now())

	require.NoError(t, store.Create(ctx, a))
	got, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	assert.ErrorIs(t, store.Create(ctx, a), domain.ErrVersionConflict)

	_, err = store.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, store.Ping(ctx))
}

func TestStore_CompareAndSwap(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	a := pendingAsset("u1", time.Now())
	require.NoError(t, store.Create(ctx, a))

	next := a.Clone()
	next.Status = domain.AssetStatusAssigned
	next.Owner = next.Requester
	next.Requester = nil
	next.Version = 2

	t.Run("Commits from expected version", func(t *testing.T) {
		require.NoError(t, store.CompareAndSwap(ctx, next, 1))
		got, err := store.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AssetStatusAssigned, got.Status)
		assert.Equal(t, "u1", *got.Owner)
		assert.Nil(t, got.Requester)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("Stale version writes nothing", func(t *testing.T) {
		stale := a.Clone()
		stale.Status = domain.AssetStatusFree
		stale.Requester = nil
		stale.Version = 2
		err := store.CompareAndSwap(ctx, stale, 1)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		got, err := store.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AssetStatusAssigned, got.Status)
	})

	t.Run("Missing record", func(t *testing.T) {
		ghost := pendingAsset("u1", time.Now())
		assert.ErrorIs(t, store.CompareAndSwap(ctx, ghost, 1), domain.ErrNotFound)
	})

	t.Run("Companion is atomic with the swap", func(t *testing.T) {
		returned := next.Clone()
		returned.Status = domain.AssetStatusFree
		returned.Owner = nil
		returned.RatingAfter = domain.IntPtr(3)
		returned.Version = 3

		linked := a.ID
		record := &domain.Asset{
			ID: uuid.New(), AssetType: "laptop", Title: "ThinkPad", Status: domain.AssetStatusFree,
			LinkedAsset: &linked, ActionType: domain.ActionTypeReturn, RatingAfter: domain.IntPtr(3),
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond), Version: 1,
		}

		// A companion that collides with an existing id aborts the swap.
		dup := record.Clone()
		dup.ID = a.ID
		assert.ErrorIs(t, store.CompareAndSwap(ctx, returned, 2, dup), domain.ErrVersionConflict)
		got, err := store.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)

		require.NoError(t, store.CompareAndSwap(ctx, returned, 2, record))
		stored, err := store.GetByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, *stored.LinkedAsset)
		assert.Equal(t, 3, *stored.RatingAfter)
	})
}

func TestStore_List(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old := pendingAsset("u1", base)
	mid := pendingAsset("u2", base.Add(time.Hour))
	recent := pendingAsset("u1", base.Add(2*time.Hour))
	recent.Status = domain.AssetStatusAssigned
	recent.Owner, recent.Requester = recent.Requester, nil
	for _, a := range []*domain.Asset{old, mid, recent} {
		require.NoError(t, store.Create(ctx, a))
	}

	all, err := store.List(ctx, repository.AssetFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{recent.ID, mid.ID, old.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	mine, err := store.List(ctx, repository.AssetFilter{Party: "u1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	stale, err := store.List(ctx, repository.AssetFilter{Status: domain.AssetStatusPending, CreatedBefore: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, mid.ID, stale[0].ID)

	summaries, err := store.CountAssignedByOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.CustodianSummary{{Owner: "u1", AssignedCount: 1}}, summaries)
}

func TestStore_FilePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custody.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	a := pendingAsset("u1", time.Now())
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)

	_, err = sqlite.Open("")
	assert.Error(t, err)
}
