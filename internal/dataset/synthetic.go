package dataset

import (
	"math/rand"

	"backprop/internal/nn"
)

// XOR returns the four exclusive-or examples.
func XOR() []nn.Example {
	return []nn.Example{
		{Features: []float64{0, 0}, Target: []float64{0}},
		{Features: []float64{0, 1}, Target: []float64{1}},
		{Features: []float64{1, 0}, Target: []float64{1}},
		{Features: []float64{1, 1}, Target: []float64{0}},
	}
}

// LinearlySeparable draws n points uniformly from [-1, 1]^dims and labels a
// point 1 when its coordinates sum to a positive value.
func LinearlySeparable(rng *rand.Rand, n, dims int) []nn.Example {
	examples := make([]nn.Example, n)
	for i := range examples {
		features := make([]float64, dims)
		sum := 0.0
		for d := range features {
			features[d] = rng.Float64()*2 - 1
			sum += features[d]
		}
		target := 0.0
		if sum > 0 {
			target = 1
		}
		examples[i] = nn.Example{Features: features, Target: []float64{target}}
	}
	return examples
}
