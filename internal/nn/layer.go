package nn

import "fmt"

// Layer is a dense layer: units sharing one activation. It caches the last
// forward input and weighted sums for exactly one following Backward call.
type Layer struct {
	units      []Unit
	activation Activation
	inputSize  int

	lastInput []float64
	lastSums  []float64
	primed    bool
}

func NewLayer(units []Unit, activation Activation) (*Layer, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: at least one unit is required", ErrInvalidLayer)
	}
	if !activation.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, activation)
	}
	inputSize := units[0].Size()
	owned := make([]Unit, len(units))
	for i, unit := range units {
		if unit.Size() != inputSize {
			return nil, fmt.Errorf("%w: unit %d has %d weights, unit 0 has %d", ErrDimensionMismatch, i, unit.Size(), inputSize)
		}
		owned[i] = unit.clone()
	}
	return &Layer{
		units:      owned,
		activation: activation,
		inputSize:  inputSize,
	}, nil
}

func (l *Layer) InputSize() int {
	return l.inputSize
}

func (l *Layer) OutputSize() int {
	return len(l.units)
}

func (l *Layer) Activation() Activation {
	return l.activation
}

// Unit returns a copy of unit i.
func (l *Layer) Unit(i int) Unit {
	return l.units[i].clone()
}

// Forward returns the activated outputs and primes the layer for Backward.
func (l *Layer) Forward(input []float64) ([]float64, error) {
	l.primed = false
	sums := make([]float64, len(l.units))
	output := make([]float64, len(l.units))
	for i, unit := range l.units {
		sum, err := unit.Forward(input)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		sums[i] = sum
		output[i] = l.activation.Activate(sum)
	}
	l.lastInput = append(l.lastInput[:0], input...)
	l.lastSums = sums
	l.primed = true
	return output, nil
}

// Backward applies one SGD step from the gradients of the layer outputs and
// returns the gradients with respect to the layer inputs. The input
// gradients are computed from the weights as they were before this step.
func (l *Layer) Backward(outputGradients []float64, learningRate float64) ([]float64, error) {
	if !l.primed {
		return nil, ErrInvalidCallSequence
	}
	if len(outputGradients) != len(l.units) {
		return nil, fmt.Errorf("%w: layer has %d units, got %d output gradients", ErrDimensionMismatch, len(l.units), len(outputGradients))
	}
	l.primed = false

	deltas := make([]float64, len(l.units))
	inputGradients := make([]float64, l.inputSize)
	for i, unit := range l.units {
		deltas[i] = outputGradients[i] * l.activation.Derivative(l.lastSums[i])
		for j, weight := range unit.weights {
			inputGradients[j] += deltas[i] * weight
		}
	}

	for i := range l.units {
		unit := &l.units[i]
		for j := range unit.weights {
			unit.weights[j] -= learningRate * deltas[i] * l.lastInput[j]
		}
		unit.bias -= learningRate * deltas[i]
	}
	return inputGradients, nil
}

func (l *Layer) clone() *Layer {
	units := make([]Unit, len(l.units))
	for i, unit := range l.units {
		units[i] = unit.clone()
	}
	return &Layer{
		units:      units,
		activation: l.activation,
		inputSize:  l.inputSize,
	}
}
