package nn

import (
	"fmt"
	"strings"
)

// Loss scores a single prediction component against its target.
type Loss int

const (
	SumSquaredError Loss = iota + 1
)

func ParseLoss(name string) (Loss, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sse", "sum_squared_error":
		return SumSquaredError, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrLossNotFound, name)
	}
}

func (l Loss) String() string {
	switch l {
	case SumSquaredError:
		return "sum_squared_error"
	default:
		return fmt.Sprintf("loss(%d)", int(l))
	}
}

// Calculate returns 0.5*(prediction-actual)^2.
func (l Loss) Calculate(prediction, actual float64) float64 {
	switch l {
	case SumSquaredError:
		diff := prediction - actual
		return 0.5 * diff * diff
	default:
		panic(fmt.Sprintf("nn: unsupported loss %d", int(l)))
	}
}

// Derivative returns d(loss)/d(prediction).
func (l Loss) Derivative(prediction, actual float64) float64 {
	switch l {
	case SumSquaredError:
		return prediction - actual
	default:
		panic(fmt.Sprintf("nn: unsupported loss %d", int(l)))
	}
}

// Total sums the component losses of a prediction vector.
func (l Loss) Total(prediction, target []float64) (float64, error) {
	if len(prediction) != len(target) {
		return 0, fmt.Errorf("%w: prediction has %d values, target has %d", ErrDimensionMismatch, len(prediction), len(target))
	}
	total := 0.0
	for k := range prediction {
		total += l.Calculate(prediction[k], target[k])
	}
	return total, nil
}

// Gradient returns the per-output derivative vector.
func (l Loss) Gradient(prediction, target []float64) ([]float64, error) {
	if len(prediction) != len(target) {
		return nil, fmt.Errorf("%w: prediction has %d values, target has %d", ErrDimensionMismatch, len(prediction), len(target))
	}
	out := make([]float64, len(prediction))
	for k := range prediction {
		out[k] = l.Derivative(prediction[k], target[k])
	}
	return out, nil
}
