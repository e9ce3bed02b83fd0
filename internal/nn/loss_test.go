package nn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumSquaredError(t *testing.T) {
	assert.Equal(t, 0.5, SumSquaredError.Calculate(1, 2))
	assert.Equal(t, -1.0, SumSquaredError.Derivative(1, 2))
	assert.Equal(t, 0.0, SumSquaredError.Calculate(3, 3))
}

func TestLossTotalAndGradient(t *testing.T) {
	total, err := SumSquaredError.Total([]float64{1, 0}, []float64{2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, total, 1e-12)

	grad, err := SumSquaredError.Gradient([]float64{1, 0}, []float64{2, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -2}, grad)

	_, err = SumSquaredError.Total([]float64{1}, []float64{1, 2})
	require.True(t, errors.Is(err, ErrDimensionMismatch))
	_, err = SumSquaredError.Gradient([]float64{1}, nil)
	require.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestParseLoss(t *testing.T) {
	got, err := ParseLoss("")
	require.NoError(t, err)
	assert.Equal(t, SumSquaredError, got)

	got, err = ParseLoss(SumSquaredError.String())
	require.NoError(t, err)
	assert.Equal(t, SumSquaredError, got)

	_, err = ParseLoss("cross_entropy")
	require.True(t, errors.Is(err, ErrLossNotFound))
}
