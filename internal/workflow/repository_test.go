package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_PutThenGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	def := &Definition{ID: "wf-1", Name: "Sample", Version: "1.0.0", InitialState: map[string]interface{}{"n": 1.0}}
	require.NoError(t, repo.Put(ctx, "tenant-a", def, ""))

	got, err := repo.Get(ctx, "tenant-a", "wf-1")
	require.NoError(t, err)
	require.Equal(t, "Sample", got.Name)
	require.Equal(t, "1.0.0", got.Version)
}

func TestMemoryRepository_GetMissingReturnsNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.Get(context.Background(), "tenant-a", "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_PutVersionConflict(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	def := &Definition{ID: "wf-1", Name: "Sample", Version: "1.0.0"}
	require.NoError(t, repo.Put(ctx, "tenant-a", def, ""))

	stale := &Definition{ID: "wf-1", Name: "Sample v2", Version: "2.0.0"}
	err := repo.Put(ctx, "tenant-a", stale, "0.9.0")
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryRepository_TenantIsolation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "tenant-a", &Definition{ID: "wf-1", Version: "1.0.0"}, ""))

	_, err := repo.Get(ctx, "tenant-b", "wf-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_ListScopesToTenant(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "tenant-a", &Definition{ID: "wf-1", Version: "1.0.0"}, ""))
	require.NoError(t, repo.Put(ctx, "tenant-a", &Definition{ID: "wf-2", Version: "1.0.0"}, ""))
	require.NoError(t, repo.Put(ctx, "tenant-b", &Definition{ID: "wf-3", Version: "1.0.0"}, ""))

	defs, err := repo.List(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, defs, 2)
}
