package trainer

import "errors"

// State is the lifecycle position of an Orchestrator.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCompleted
	StateStopped
	StateFailed
)

var (
	ErrInvalidOptions   = errors.New("invalid training options")
	ErrNotActive        = errors.New("training run is not active")
	ErrConcurrencyFault = errors.New("training state is poisoned")
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further epochs can run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}
