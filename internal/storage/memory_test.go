package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	assert.Error(t, store.SaveRun(ctx, sampleRun("a", "2026-01-01T00:00:00Z")))
	assert.Error(t, store.SaveLossHistory(ctx, "a", []float64{1}))

	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.SaveRun(ctx, sampleRun("a", "2026-01-01T00:00:00Z")))
	require.NoError(t, store.Init(ctx))
	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs, "init resets the store")
}

func TestMemoryStoreCheckpointDoesNotAlias(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	checkpoint := sampleCheckpoint("r", 1)
	require.NoError(t, store.SaveCheckpoint(ctx, checkpoint))
	checkpoint.Network.Layers[0].Units[0].Weights[0] = 99

	stored, ok, err := store.GetCheckpoint(ctx, "r")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.5, stored.Network.Layers[0].Units[0].Weights[0])
}
