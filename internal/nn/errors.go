package nn

import "errors"

var (
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrInvalidLayer        = errors.New("invalid layer")
	ErrInvalidCallSequence = errors.New("backward called without a matching forward")
	ErrEmptyDataset        = errors.New("empty dataset")
	ErrActivationNotFound  = errors.New("activation not found")
	ErrLossNotFound        = errors.New("loss not found")
)
