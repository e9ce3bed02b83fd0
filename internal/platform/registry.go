package platform

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"backprop/internal/trainer"
)

var (
	ErrRunIDRequired = errors.New("run id is required")
	ErrRunNotActive  = errors.New("run not active")
	ErrRunExists     = errors.New("run already active")
)

// Controller is the control surface of one training run.
// *trainer.Orchestrator satisfies it.
type Controller interface {
	Pause() error
	Resume() error
	Stop() error
	Status() trainer.Status
}

type RunStatus struct {
	RunID  string  `json:"run_id"`
	Epoch  int     `json:"epoch"`
	Loss   float64 `json:"loss"`
	State  string  `json:"state"`
	Active bool    `json:"active"`
}

// Registry routes pause, continue and stop commands to runs by id and keeps
// the last status of runs that have been unregistered.
type Registry struct {
	mu       sync.RWMutex
	runs     map[string]Controller
	finished map[string]RunStatus
}

func NewRegistry() *Registry {
	return &Registry{
		runs:     make(map[string]Controller),
		finished: make(map[string]RunStatus),
	}
}

func (r *Registry) Register(runID string, run Controller) error {
	if runID == "" {
		return ErrRunIDRequired
	}
	if run == nil {
		return fmt.Errorf("run controller is required: %s", runID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunExists, runID)
	}
	delete(r.finished, runID)
	r.runs[runID] = run
	return nil
}

// Unregister drops runID and remembers its final status.
func (r *Registry) Unregister(runID string) {
	if runID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return
	}
	delete(r.runs, runID)
	status := statusOf(runID, run)
	status.Active = false
	r.finished[runID] = status
}

// Get returns the controller of an active run.
func (r *Registry) Get(runID string) (Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	return run, ok
}

func (r *Registry) Pause(runID string) error {
	run, err := r.lookup(runID)
	if err != nil {
		return err
	}
	return run.Pause()
}

func (r *Registry) Continue(runID string) error {
	run, err := r.lookup(runID)
	if err != nil {
		return err
	}
	return run.Resume()
}

// Stop blocks until the run's training goroutine has exited.
func (r *Registry) Stop(runID string) error {
	run, err := r.lookup(runID)
	if err != nil {
		return err
	}
	return run.Stop()
}

// StopAll stops every active run and returns the first error seen.
func (r *Registry) StopAll() error {
	r.mu.RLock()
	runs := make([]Controller, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	r.mu.RUnlock()

	var first error
	for _, run := range runs {
		if err := run.Stop(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Statuses lists active and finished runs ordered by id.
func (r *Registry) Statuses() []RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.runs)+len(r.finished))
	for id := range r.runs {
		ids = append(ids, id)
	}
	for id := range r.finished {
		if _, active := r.runs[id]; !active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]RunStatus, 0, len(ids))
	for _, id := range ids {
		if run, ok := r.runs[id]; ok {
			out = append(out, statusOf(id, run))
			continue
		}
		out = append(out, r.finished[id])
	}
	return out
}

func (r *Registry) lookup(runID string) (Controller, error) {
	if runID == "" {
		return nil, ErrRunIDRequired
	}
	run, ok := r.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	return run, nil
}

func statusOf(runID string, run Controller) RunStatus {
	status := run.Status()
	return RunStatus{
		RunID:  runID,
		Epoch:  status.Epoch,
		Loss:   status.Loss,
		State:  status.State.String(),
		Active: true,
	}
}
