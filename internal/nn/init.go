package nn

import (
	"fmt"
	"math"
	"math/rand"
)

// NewDense builds a layer with Glorot-uniform weights drawn from rng and
// zero biases. rng must not be shared with another goroutine.
func NewDense(rng *rand.Rand, inputSize, outputSize int, activation Activation) (*Layer, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidLayer)
	}
	if inputSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("%w: dense layer %dx%d", ErrInvalidLayer, inputSize, outputSize)
	}
	limit := math.Sqrt(6.0 / float64(inputSize+outputSize))
	units := make([]Unit, outputSize)
	for i := range units {
		weights := make([]float64, inputSize)
		for j := range weights {
			weights[j] = (rng.Float64()*2 - 1) * limit
		}
		units[i] = Unit{weights: weights}
	}
	return NewLayer(units, activation)
}

// Build stacks dense layers for sizes = [inputs, hidden..., outputs]. Hidden
// layers use hidden, the last layer uses output.
func Build(rng *rand.Rand, sizes []int, hidden, output Activation) (*Model, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("%w: topology needs an input and an output size, got %v", ErrInvalidLayer, sizes)
	}
	layers := make([]*Layer, 0, len(sizes)-1)
	for i := 1; i < len(sizes); i++ {
		activation := hidden
		if i == len(sizes)-1 {
			activation = output
		}
		layer, err := NewDense(rng, sizes[i-1], sizes[i], activation)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i-1, err)
		}
		layers = append(layers, layer)
	}
	return NewModel(layers...)
}
