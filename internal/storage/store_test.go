package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backprop/internal/model"
)

func sampleRun(id, created string) model.Run {
	return model.Run{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		CreatedAtUTC:    created,
		Dataset:         "xor",
		Topology:        []int{2, 2, 1},
		Hidden:          "sigmoid",
		Output:          "sigmoid",
		LearningRate:    0.5,
		EpochLimit:      100,
		Seed:            7,
		State:           "completed",
		Epochs:          100,
		FinalLoss:       0.01,
	}
}

func sampleCheckpoint(runID string, epoch int) model.Checkpoint {
	return model.Checkpoint{
		VersionedRecord: CurrentVersion(),
		RunID:           runID,
		Epoch:           epoch,
		Loss:            0.2,
		Network: model.Network{
			VersionedRecord: CurrentVersion(),
			Loss:            "sum_squared_error",
			Layers: []model.Layer{{
				Activation: "sigmoid",
				Units:      []model.Unit{{Weights: []float64{0.5, -0.25}, Bias: 0.1}},
			}},
		},
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	_, ok, err := store.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveRun(ctx, sampleRun("b", "2026-01-02T00:00:00Z")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("a", "2026-01-02T00:00:00Z")))
	require.NoError(t, store.SaveRun(ctx, sampleRun("c", "2026-01-01T00:00:00Z")))

	updated := sampleRun("b", "2026-01-02T00:00:00Z")
	updated.Epochs = 42
	require.NoError(t, store.SaveRun(ctx, updated))

	run, ok, err := store.GetRun(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, run.Epochs)
	assert.Equal(t, []int{2, 2, 1}, run.Topology)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	unversioned := sampleRun("d", "2026-01-03T00:00:00Z")
	unversioned.VersionedRecord = model.VersionedRecord{}
	assert.ErrorIs(t, store.SaveRun(ctx, unversioned), ErrVersionMismatch)

	history := []float64{0.9, 0.5, 0.25}
	require.NoError(t, store.SaveLossHistory(ctx, "b", history))
	history[0] = 100
	got, ok, err := store.GetLossHistory(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{0.9, 0.5, 0.25}, got)

	_, ok, err = store.GetLossHistory(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveCheckpoint(ctx, sampleCheckpoint("b", 10)))
	require.NoError(t, store.SaveCheckpoint(ctx, sampleCheckpoint("b", 20)))
	checkpoint, ok, err := store.GetCheckpoint(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20, checkpoint.Epoch)
	assert.Equal(t, sampleCheckpoint("b", 20), checkpoint)

	require.NoError(t, store.SaveCheckpoint(ctx, sampleCheckpoint("b", 15)))
	checkpoint, _, err = store.GetCheckpoint(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 20, checkpoint.Epoch, "an older epoch never replaces a newer one")

	_, ok, err = store.GetCheckpoint(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStoreMemory(t *testing.T) {
	for _, kind := range []string{"", "memory", " Memory "} {
		store, err := NewStore(kind, "")
		require.NoError(t, err, kind)
		assert.IsType(t, &MemoryStore{}, store)
		assert.NoError(t, CloseIfSupported(store))
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("postgres", "")
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
	assert.Contains(t, Kinds(), DefaultStoreKind())
}

func TestDefaultStoreKindIsConstructible(t *testing.T) {
	store, err := NewStore(DefaultStoreKind(), t.TempDir()+"/default.db")
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	assert.NoError(t, CloseIfSupported(store))
}
