package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 500.0, Clamp(1500, 500))
	assert.Equal(t, -500.0, Clamp(-1500, 500))
	assert.Equal(t, 2.0, Clamp(5, -2), "negative spread is mirrored")
	assert.Equal(t, 0.25, Clamp(0.25, 2))
}

func TestMeanAndPopStdDev(t *testing.T) {
	mean, err := Mean([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 2, mean, 1e-12)

	std, err := PopStdDev([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(2.0/3.0), std, 1e-12)

	_, err = Mean(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
	_, err = PopStdDev(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}
