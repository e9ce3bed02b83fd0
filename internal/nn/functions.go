package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Clamp bounds value to [-spread, spread]. A negative spread is mirrored.
func Clamp(value, spread float64) float64 {
	spread = math.Abs(spread)
	return math.Max(-spread, math.Min(spread, value))
}

// Mean is the arithmetic mean of a loss series.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyDataset
	}
	return floats.Sum(values) / float64(len(values)), nil
}

// PopStdDev is the population standard deviation of a loss series.
func PopStdDev(values []float64) (float64, error) {
	mean, err := Mean(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, value := range values {
		d := value - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values))), nil
}
