package monitor

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backprop/internal/dataset"
	"backprop/internal/nn"
	"backprop/internal/trainer"
)

type fakeSource struct {
	snapshot nn.Snapshot
	status   trainer.Status
	err      error
	done     chan struct{}
}

func (f *fakeSource) Status() trainer.Status         { return f.status }
func (f *fakeSource) Snapshot() (nn.Snapshot, error) { return f.snapshot, f.err }
func (f *fakeSource) EpochLimit() int                { return 10 }
func (f *fakeSource) Done() <-chan struct{}          { return f.done }

func fixedSnapshot(t *testing.T) nn.Snapshot {
	t.Helper()
	hidden, err := nn.NewLayer([]nn.Unit{
		nn.NewUnit([]float64{3, -4}, 0.5),
		nn.NewUnit([]float64{0, 1}, -1),
	}, nn.ReLU)
	require.NoError(t, err)
	output, err := nn.NewLayer([]nn.Unit{nn.NewUnit([]float64{1, -2}, 0)}, nn.Sigmoid)
	require.NoError(t, err)
	m, err := nn.NewModel(hidden, output)
	require.NoError(t, err)
	return m.Snapshot()
}

func TestBuildFrame(t *testing.T) {
	src := &fakeSource{
		snapshot: fixedSnapshot(t),
		status:   trainer.Status{Epoch: 4, Loss: 0.25, State: trainer.StateRunning},
		done:     make(chan struct{}),
	}
	frame, err := BuildFrame(src)
	require.NoError(t, err)

	assert.Equal(t, 4, frame.Epoch)
	assert.Equal(t, 0.25, frame.Loss)
	assert.Equal(t, trainer.StateRunning, frame.State)
	assert.InDelta(t, 0.4, frame.Progress(), 1e-12)
	require.Len(t, frame.Layers, 2)

	first := frame.Layers[0]
	rows, cols := first.Weights.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, -4.0, first.Weights.At(0, 1))
	assert.Equal(t, []float64{0.5, -1}, first.Biases)
	assert.Equal(t, 4.0, first.MaxAbsWeight)
	assert.InDelta(t, math.Sqrt(26), first.Norm, 1e-12)
	assert.Equal(t, nn.ReLU, first.Activation)
	assert.Equal(t, nn.Sigmoid, frame.Layers[1].Activation)
}

func TestBuildFramePropagatesSnapshotErrors(t *testing.T) {
	src := &fakeSource{err: trainer.ErrConcurrencyFault, done: make(chan struct{})}
	_, err := BuildFrame(src)
	assert.ErrorIs(t, err, trainer.ErrConcurrencyFault)
}

func TestPollEmitsFinalFrame(t *testing.T) {
	src := &fakeSource{snapshot: fixedSnapshot(t), done: make(chan struct{})}
	close(src.done)
	src.status = trainer.Status{Epoch: 10, State: trainer.StateCompleted}

	var frames []Frame
	err := Poll(context.Background(), src, time.Hour, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, trainer.StateCompleted, frames[0].State)
	assert.Equal(t, 1.0, frames[0].Progress())
}

func TestPollStopsOnSinkErrorAndContext(t *testing.T) {
	src := &fakeSource{snapshot: fixedSnapshot(t), done: make(chan struct{})}
	boom := errors.New("display closed")
	err := Poll(context.Background(), src, time.Millisecond, func(Frame) error { return boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err = Poll(ctx, src, time.Hour, func(Frame) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollWatchesLiveRun(t *testing.T) {
	model, err := nn.Build(rand.New(rand.NewSource(1)), []int{2, 2, 1}, nn.Sigmoid, nn.Sigmoid)
	require.NoError(t, err)
	o, err := trainer.Start(model, dataset.XOR(), trainer.Options{LearningRate: 0.5, EpochLimit: 200, Yield: time.Millisecond})
	require.NoError(t, err)
	defer o.Close()

	var mu sync.Mutex
	var epochs []int
	err = Poll(context.Background(), o, 2*time.Millisecond, func(f Frame) error {
		mu.Lock()
		defer mu.Unlock()
		epochs = append(epochs, f.Epoch)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, epochs)
	assert.Equal(t, 200, epochs[len(epochs)-1])
	for i := 1; i < len(epochs); i++ {
		assert.GreaterOrEqual(t, epochs[i], epochs[i-1])
	}
}
