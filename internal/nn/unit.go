package nn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Unit is a single affine scorer: a weighted sum of its inputs plus a bias.
type Unit struct {
	weights []float64
	bias    float64
}

// NewUnit copies weights so the caller keeps no alias into the unit.
func NewUnit(weights []float64, bias float64) Unit {
	return Unit{weights: append([]float64(nil), weights...), bias: bias}
}

func (u Unit) Forward(input []float64) (float64, error) {
	if len(input) != len(u.weights) {
		return 0, fmt.Errorf("%w: unit has %d weights, input has %d values", ErrDimensionMismatch, len(u.weights), len(input))
	}
	return floats.Dot(u.weights, input) + u.bias, nil
}

func (u Unit) Weights() []float64 {
	return append([]float64(nil), u.weights...)
}

func (u Unit) Bias() float64 {
	return u.bias
}

// Size is the number of inputs the unit accepts.
func (u Unit) Size() int {
	return len(u.weights)
}

func (u Unit) clone() Unit {
	return NewUnit(u.weights, u.bias)
}
