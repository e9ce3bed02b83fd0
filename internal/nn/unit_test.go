package nn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitForward(t *testing.T) {
	unit := NewUnit([]float64{0.5}, 0)
	got, err := unit.Forward([]float64{2})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)

	unit = NewUnit([]float64{0.5, -0.3}, 0.1)
	got, err = unit.Forward([]float64{2, 4})
	require.NoError(t, err)
	assert.InDelta(t, -0.1, got, 1e-12)
}

func TestUnitForwardIsRepeatable(t *testing.T) {
	unit := NewUnit([]float64{0.2, 0.3, -0.7}, 0.4)
	input := []float64{1.5, -2, 0.25}
	first, err := unit.Forward(input)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := unit.Forward(input)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestUnitForwardRejectsDimensionMismatch(t *testing.T) {
	unit := NewUnit([]float64{0.5, 0.5}, 0)
	_, err := unit.Forward([]float64{1})
	require.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)
}

func TestNewUnitCopiesWeights(t *testing.T) {
	weights := []float64{1, 2}
	unit := NewUnit(weights, 0)
	weights[0] = 99
	assert.Equal(t, []float64{1, 2}, unit.Weights())

	view := unit.Weights()
	view[1] = 99
	assert.Equal(t, []float64{1, 2}, unit.Weights())
	assert.Equal(t, 2, unit.Size())
}
