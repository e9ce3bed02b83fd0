package backprop

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backprop/internal/monitor"
	"backprop/internal/stats"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
		Logger:     log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, base
}

func TestClientTrainRunsAndExport(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	var frames []monitor.Frame
	summary, err := client.Train(ctx, TrainRequest{
		Dataset:         "xor",
		Hidden:          []int{3},
		LearningRate:    0.5,
		Epochs:          25,
		Yield:           -1,
		Seed:            42,
		CheckpointEvery: 10,
		FrameInterval:   time.Millisecond,
	}, func(f monitor.Frame) { frames = append(frames, f) })
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "completed", summary.State)
	assert.Equal(t, 25, summary.Epochs)
	assert.Equal(t, []int{2, 3, 1}, summary.Topology)
	assert.Equal(t, 2*3+3+3*1+1, summary.Parameters)
	require.Len(t, summary.LossHistory, 25)
	assert.Equal(t, summary.LossHistory[24], summary.FinalLoss)
	require.NotNil(t, summary.Evaluation)
	assert.Equal(t, "train", summary.EvaluatedOn)
	assert.Equal(t, 4, summary.Evaluation.Examples)
	assert.DirExists(t, summary.ArtifactsDir)

	require.NotEmpty(t, frames)
	assert.Equal(t, 25, frames[len(frames)-1].Epoch)

	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Nil(t, runs[0].TestAccuracy, "xor trains on every example")

	history, err := client.LossHistory(ctx, LossHistoryRequest{Latest: true, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, summary.LossHistory[20:], history)

	checkpoint, err := client.Checkpoint(ctx, summary.RunID, false)
	require.NoError(t, err)
	assert.Equal(t, 25, checkpoint.Epoch)
	prediction, err := checkpoint.Snapshot.Predict([]float64{1, 0})
	require.NoError(t, err)
	assert.Len(t, prediction, 1)

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, exported.RunID)
	assert.Equal(t, filepath.Join(base, "exports", summary.RunID), exported.Directory)
	assert.FileExists(t, filepath.Join(exported.Directory, "model.json"))

	active := client.Active()
	require.Len(t, active, 1)
	assert.Equal(t, summary.RunID, active[0].RunID)
	assert.Equal(t, "completed", active[0].State)
	assert.False(t, active[0].Active)
}

func TestClientTrainIsDeterministicForASeed(t *testing.T) {
	client, _ := newTestClient(t)
	req := TrainRequest{Dataset: "linear", Hidden: []int{4}, LearningRate: 0.2, Epochs: 15, Yield: -1, Seed: 9}

	first, err := client.Train(context.Background(), req, nil)
	require.NoError(t, err)
	second, err := client.Train(context.Background(), req, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.LossHistory, second.LossHistory)
	assert.Equal(t, "test", first.EvaluatedOn)
	assert.Equal(t, 40, first.Evaluation.Examples)

	runs, err := client.Runs(context.Background(), RunsRequest{Limit: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].TestAccuracy)
}

func TestClientTrainOnCSV(t *testing.T) {
	client, base := newTestClient(t)
	var rows strings.Builder
	rows.WriteString("f1,f2,label\n")
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			rows.WriteString("10,0.5,1\n")
		} else {
			rows.WriteString("0,4,0\n")
		}
	}
	path := filepath.Join(base, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(rows.String()), 0o644))

	summary, err := client.Train(context.Background(), TrainRequest{
		Dataset:       path,
		SkipHeader:    true,
		SplitRatio:    0.75,
		Normalization: "max",
		Hidden:        []int{3},
		LearningRate:  0.5,
		Epochs:        200,
		Yield:         -1,
		Seed:          3,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", summary.EvaluatedOn)
	assert.Equal(t, 10, summary.Evaluation.Examples)
	assert.Equal(t, 1.0, summary.Evaluation.Accuracy)

	cfg, ok, err := stats.ReadRunConfig(filepath.Join(base, "runs"), summary.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "max", cfg.Normalization)
	assert.Equal(t, []int{2, 3, 1}, cfg.Topology)
}

func TestClientStopsRunByID(t *testing.T) {
	client, _ := newTestClient(t)
	type result struct {
		summary TrainSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := client.Train(context.Background(), TrainRequest{
			Epochs: 1_000_000,
			Yield:  time.Millisecond,
			Seed:   1,
		}, nil)
		done <- result{summary, err}
	}()

	var runID string
	require.Eventually(t, func() bool {
		for _, status := range client.Active() {
			if status.Active && status.Epoch > 0 {
				runID = status.RunID
				return true
			}
		}
		return false
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, client.Pause(runID))
	require.NoError(t, client.Resume(runID))
	require.NoError(t, client.Stop(runID))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, "stopped", res.summary.State)
		assert.Equal(t, runID, res.summary.RunID)
		assert.Len(t, res.summary.LossHistory, res.summary.Epochs)
	case <-time.After(5 * time.Second):
		t.Fatal("train did not return after stop")
	}
	assert.Error(t, client.Pause(runID))
}

func TestClientTrainStopsOnContextCancel(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var last monitor.Frame
	summary, err := client.Train(ctx, TrainRequest{StartPaused: true, Seed: 5}, func(f monitor.Frame) { last = f })
	require.NoError(t, err)
	assert.Equal(t, "stopped", summary.State)
	assert.Equal(t, 0, summary.Epochs)
	assert.Equal(t, "stopped", last.State.String())

	checkpoint, err := client.Checkpoint(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, checkpoint.RunID)
	assert.Equal(t, 0, checkpoint.Epoch)
}

func TestClientRejectsBadRequests(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Train(ctx, TrainRequest{HiddenAct: "tanh"}, nil)
	assert.Error(t, err)
	_, err = client.Train(ctx, TrainRequest{Hidden: []int{0}}, nil)
	assert.Error(t, err)
	_, err = client.Train(ctx, TrainRequest{Normalization: "minmax"}, nil)
	assert.Error(t, err)
	_, err = client.Train(ctx, TrainRequest{Dataset: filepath.Join(t.TempDir(), "missing.csv")}, nil)
	assert.Error(t, err)

	_, err = client.LossHistory(ctx, LossHistoryRequest{Latest: true})
	assert.ErrorIs(t, err, ErrNoRuns)
	_, err = client.LossHistory(ctx, LossHistoryRequest{RunID: "x", Latest: true})
	assert.Error(t, err)
	_, err = client.Export(ctx, ExportRequest{})
	assert.Error(t, err)
	_, err = client.Export(ctx, ExportRequest{Latest: true})
	assert.ErrorIs(t, err, ErrNoRuns)
	_, err = client.Checkpoint(ctx, "nope", false)
	assert.Error(t, err)
}
