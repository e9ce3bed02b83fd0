package platform

import (
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

type fakeRun struct {
	mu     sync.Mutex
	state  trainer.State
	epoch  int
	calls  []string
	stopFn func() error
}

func (f *fakeRun) record(call string, state trainer.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.state = state
}

func (f *fakeRun) Pause() error  { f.record("pause", trainer.StatePaused); return nil }
func (f *fakeRun) Resume() error { f.record("resume", trainer.StateRunning); return nil }
func (f *fakeRun) Stop() error {
	f.record("stop", trainer.StateStopped)
	if f.stopFn != nil {
		return f.stopFn()
	}
	return nil
}
func (f *fakeRun) Status() trainer.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return trainer.Status{Epoch: f.epoch, State: f.state}
}

func TestRegistryRoutesCommands(t *testing.T) {
	r := NewRegistry()
	run := &fakeRun{state: trainer.StateRunning, epoch: 7}
	require.NoError(t, r.Register("b", run))
	require.NoError(t, r.Register("a", &fakeRun{}))

	require.NoError(t, r.Pause("b"))
	require.NoError(t, r.Continue("b"))
	require.NoError(t, r.Stop("b"))
	assert.Equal(t, []string{"pause", "resume", "stop"}, run.calls)
	assert.Len(t, r.Statuses(), 2)

	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Same(t, run, got)
}

func TestRegistryRejectsUnknownAndDuplicateRuns(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Pause("missing"), ErrRunNotActive)
	assert.ErrorIs(t, r.Continue(""), ErrRunIDRequired)
	assert.ErrorIs(t, r.Register("", &fakeRun{}), ErrRunIDRequired)
	assert.Error(t, r.Register("x", nil))

	require.NoError(t, r.Register("x", &fakeRun{}))
	assert.ErrorIs(t, r.Register("x", &fakeRun{}), ErrRunExists)
}

func TestRegistryKeepsFinishedStatus(t *testing.T) {
	r := NewRegistry()
	run := &fakeRun{state: trainer.StateCompleted, epoch: 100}
	require.NoError(t, r.Register("done", run))
	require.NoError(t, r.Register("live", &fakeRun{state: trainer.StateRunning, epoch: 3}))
	r.Unregister("done")
	r.Unregister("never-registered")

	_, ok := r.Get("done")
	assert.False(t, ok)
	_, ok = r.Get("live")
	assert.True(t, ok)
	assert.ErrorIs(t, r.Stop("done"), ErrRunNotActive)
	assert.Equal(t, []RunStatus{
		{RunID: "done", Epoch: 100, State: "completed"},
		{RunID: "live", Epoch: 3, State: "running", Active: true},
	}, r.Statuses())

	require.NoError(t, r.Register("done", run), "a finished id may be reused")
	assert.Len(t, r.Statuses(), 2)
}

func TestRegistryStopAllControlsRealRuns(t *testing.T) {
	r := NewRegistry()
	for i, id := range []string{"r1", "r2"} {
		model, err := nn.Build(rand.New(rand.NewSource(int64(i))), []int{2, 2, 1}, nn.Sigmoid, nn.Sigmoid)
		require.NoError(t, err)
		o, err := trainer.Start(model, dataset.XOR(), trainer.Options{LearningRate: 0.5, EpochLimit: 1_000_000, Yield: time.Millisecond})
		require.NoError(t, err)
		t.Cleanup(func() { _ = o.Close() })
		require.NoError(t, r.Register(id, o))
	}
	require.NoError(t, r.Pause("r1"))
	require.NoError(t, r.StopAll())

	for _, status := range r.Statuses() {
		assert.Equal(t, "stopped", status.State, status.RunID)
	}
	assert.ErrorIs(t, r.Pause("r2"), trainer.ErrNotActive)
}
