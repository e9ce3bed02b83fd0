package dataset

import (
	"math/rand"

	"github.com/pkg/errors"

	"backprop/internal/nn"
)

// SplitExamples puts the first floor(n*ratio) examples in Train and the rest
// in Test. The partitions share backing storage with examples.
func SplitExamples(examples []nn.Example, ratio float64) (Split, error) {
	if !(ratio >= 0 && ratio <= 1) {
		return Split{}, errors.Wrapf(ErrInvalidSplit, "got %g", ratio)
	}
	idx := int(float64(len(examples)) * ratio)
	return Split{
		Train: examples[:idx:idx],
		Test:  examples[idx:],
	}, nil
}

// Shuffle permutes examples in place using rng.
func Shuffle(rng *rand.Rand, examples []nn.Example) {
	rng.Shuffle(len(examples), func(i, j int) {
		examples[i], examples[j] = examples[j], examples[i]
	})
}
