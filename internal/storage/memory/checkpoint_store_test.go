package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/checkpoint"
	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

func TestCheckpointStoreRoundTrip(t *testing.T) {
	t.Parallel()

	backend := NewCheckpointStore()
	_, err := backend.Get(context.Background())
	require.ErrorIs(t, err, checkpoint.ErrNotFound)

	store := checkpoint.NewStore(backend, nil, zap.NewNop())
	jobs := []crawler.JobID{"u1", "u2"}
	state, pending, err := store.Load(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, jobs, pending)

	state.MarkCompleted("u1")
	require.NoError(t, store.Save(context.Background(), state))
	assert.Equal(t, 1, backend.Saves())

	_, pending, err = store.Load(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, []crawler.JobID{"u2"}, pending)
}
