package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vision-classifier/internal/domain/entity"
)

func TestMemoryUserRepository_GetCreates(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	user.SetState(entity.StateWatching)
	require.NoError(t, repo.Save(ctx, user))

	again, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateWatching, again.State)
}

func TestMemoryUserRepository_ListByState(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		_, err := repo.Get(ctx, id, id*10)
		require.NoError(t, err)
	}
	require.NoError(t, repo.UpdateState(ctx, 3, entity.StateWatching))
	require.NoError(t, repo.UpdateState(ctx, 1, entity.StateWatching))

	watchers, err := repo.ListByState(ctx, entity.StateWatching)
	require.NoError(t, err)
	require.Len(t, watchers, 2)
	require.Equal(t, int64(1), watchers[0].ID)
	require.Equal(t, int64(3), watchers[1].ID)
}
