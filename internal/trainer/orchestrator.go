package trainer

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"backprop/internal/nn"
)

const (
	DefaultEpochLimit = 100
	DefaultYield      = time.Millisecond
)

// Trainable is the part of a model the epoch loop drives. *nn.Model
// satisfies it.
type Trainable interface {
	TrainEpoch(examples []nn.Example, learningRate float64) (float64, error)
	Snapshot() nn.Snapshot
}

// Hooks run on the training goroutine. They must not call Stop or Close.
// OnEpoch runs between epochs, while nothing mutates the model, so it may
// read the model the run was started with.
type Hooks struct {
	OnEpoch  func(epoch int, loss float64)
	OnFinish func(state State, err error)
}

type Options struct {
	LearningRate float64
	// EpochLimit defaults to DefaultEpochLimit.
	EpochLimit int
	// Yield is the pause between epochs. Zero means DefaultYield, a
	// negative value only yields the processor.
	Yield       time.Duration
	StartPaused bool
	Hooks       Hooks
}

// Status is a point-in-time read of the counters. Its fields are read
// one after another, so an epoch may be visible before its loss.
type Status struct {
	Epoch int
	Loss  float64
	State State
}

// Orchestrator runs bounded-epoch SGD on one background goroutine while
// other goroutines take snapshots and pause, resume or stop the run.
//
// The model is locked for exactly one epoch at a time, so a snapshot always
// reflects the weights at an epoch boundary. Callers must Close (or Stop)
// every Orchestrator they start.
type Orchestrator struct {
	opts     Options
	examples []nn.Example

	modelMu  sync.Mutex
	model    Trainable
	poisoned error

	lossMu sync.RWMutex
	loss   float64

	epoch atomic.Int64

	ctrlMu   sync.Mutex
	resumed  *sync.Cond
	running  bool
	stopping bool
	ended    bool
	state    State
	err      error

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Start validates the run, takes ownership of model and launches the epoch
// loop. examples must not be modified until the run has ended.
func Start(model Trainable, examples []nn.Example, opts Options) (*Orchestrator, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidOptions)
	}
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("start training: %w", nn.ErrEmptyDataset)
	}
	if checker, ok := model.(interface{ CheckExamples([]nn.Example) error }); ok {
		if err := checker.CheckExamples(examples); err != nil {
			return nil, fmt.Errorf("start training: %w", err)
		}
	}

	o := &Orchestrator{
		opts:     opts,
		examples: examples,
		model:    model,
		state:    StateIdle,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	o.resumed = sync.NewCond(&o.ctrlMu)
	if opts.StartPaused {
		o.state = StatePaused
	} else {
		o.running = true
		o.state = StateRunning
	}

	go o.run()
	return o, nil
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.LearningRate <= 0 {
		return Options{}, fmt.Errorf("%w: learning rate must be > 0 (got %g)", ErrInvalidOptions, opts.LearningRate)
	}
	if opts.EpochLimit < 0 {
		return Options{}, fmt.Errorf("%w: epoch limit must be >= 0 (got %d)", ErrInvalidOptions, opts.EpochLimit)
	}
	if opts.EpochLimit == 0 {
		opts.EpochLimit = DefaultEpochLimit
	}
	if opts.Yield == 0 {
		opts.Yield = DefaultYield
	}
	return opts, nil
}

func (o *Orchestrator) run() {
	defer close(o.done)
	state, err := o.loop()

	o.ctrlMu.Lock()
	o.running = false
	o.state = state
	o.err = err
	o.ctrlMu.Unlock()

	if o.opts.Hooks.OnFinish != nil {
		o.opts.Hooks.OnFinish(state, err)
	}
}

func (o *Orchestrator) loop() (State, error) {
	defer func() {
		o.ctrlMu.Lock()
		o.ended = true
		o.ctrlMu.Unlock()
	}()
	for {
		if !o.awaitRunnable() {
			return StateStopped, nil
		}
		if int(o.epoch.Load()) >= o.opts.EpochLimit {
			return StateCompleted, nil
		}

		loss, err := o.trainEpoch()
		if err != nil {
			return StateFailed, err
		}
		o.lossMu.Lock()
		o.loss = loss
		o.lossMu.Unlock()
		epoch := int(o.epoch.Add(1))

		if o.opts.Hooks.OnEpoch != nil {
			o.opts.Hooks.OnEpoch(epoch, loss)
		}
		if epoch >= o.opts.EpochLimit {
			return StateCompleted, nil
		}
		if !o.yield() {
			return StateStopped, nil
		}
	}
}

// awaitRunnable blocks while the run is paused and reports false once a
// stop has been requested.
func (o *Orchestrator) awaitRunnable() bool {
	o.ctrlMu.Lock()
	defer o.ctrlMu.Unlock()
	for !o.running && !o.stopping {
		o.resumed.Wait()
	}
	return !o.stopping
}

func (o *Orchestrator) yield() bool {
	if o.opts.Yield < 0 {
		runtime.Gosched()
		select {
		case <-o.stopCh:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(o.opts.Yield)
	defer timer.Stop()
	select {
	case <-o.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

func (o *Orchestrator) trainEpoch() (loss float64, err error) {
	o.modelMu.Lock()
	defer o.modelMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			o.poisoned = fmt.Errorf("%w: panic in epoch %d: %v", ErrConcurrencyFault, o.epoch.Load()+1, r)
			err = o.poisoned
		}
	}()
	return o.model.TrainEpoch(o.examples, o.opts.LearningRate)
}

// Pause keeps the loop from starting another epoch. An epoch already in
// progress runs to completion.
func (o *Orchestrator) Pause() error {
	o.ctrlMu.Lock()
	defer o.ctrlMu.Unlock()
	if !o.activeLocked() {
		return ErrNotActive
	}
	o.running = false
	o.state = StatePaused
	return nil
}

func (o *Orchestrator) Resume() error {
	o.ctrlMu.Lock()
	defer o.ctrlMu.Unlock()
	if !o.activeLocked() {
		return ErrNotActive
	}
	o.running = true
	o.state = StateRunning
	o.resumed.Broadcast()
	return nil
}

// activeLocked reports whether the loop can still run epochs. The loop may
// have returned before run records the final state, so the ended flag is
// checked as well. Callers hold ctrlMu.
func (o *Orchestrator) activeLocked() bool {
	return !o.stopping && !o.ended && !o.state.Terminal()
}

// Stop asks the loop to exit and waits for it. The in-flight epoch, if
// any, completes first. Once Stop returns nothing touches the model,
// counters or hooks again. Stop is idempotent and returns the error that
// ended the run, if any.
func (o *Orchestrator) Stop() error {
	o.stopOnce.Do(func() {
		o.ctrlMu.Lock()
		o.stopping = true
		o.running = false
		o.resumed.Broadcast()
		o.ctrlMu.Unlock()
		close(o.stopCh)
	})
	<-o.done
	return o.Err()
}

// Close implements io.Closer.
func (o *Orchestrator) Close() error {
	return o.Stop()
}

// Snapshot copies the model under its lock.
func (o *Orchestrator) Snapshot() (nn.Snapshot, error) {
	o.modelMu.Lock()
	defer o.modelMu.Unlock()
	if o.poisoned != nil {
		return nn.Snapshot{}, o.poisoned
	}
	return o.model.Snapshot(), nil
}

func (o *Orchestrator) Epoch() int {
	return int(o.epoch.Load())
}

// Loss is the mean loss of the most recently completed epoch.
func (o *Orchestrator) Loss() float64 {
	o.lossMu.RLock()
	defer o.lossMu.RUnlock()
	return o.loss
}

func (o *Orchestrator) State() State {
	o.ctrlMu.Lock()
	defer o.ctrlMu.Unlock()
	return o.state
}

func (o *Orchestrator) Status() Status {
	return Status{Epoch: o.Epoch(), Loss: o.Loss(), State: o.State()}
}

func (o *Orchestrator) EpochLimit() int {
	return o.opts.EpochLimit
}

// Done is closed once the training goroutine has exited.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Err returns the error that ended the run, or nil.
func (o *Orchestrator) Err() error {
	o.ctrlMu.Lock()
	defer o.ctrlMu.Unlock()
	return o.err
}

// Wait blocks until the run ends on its own or ctx is done. It does not
// stop the run.
func (o *Orchestrator) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
