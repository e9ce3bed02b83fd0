package nn

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReLUActivateAndDerivative(t *testing.T) {
	assert.Equal(t, 5.0, ReLU.Activate(5))
	assert.Equal(t, 0.0, ReLU.Activate(0))
	assert.Equal(t, 0.0, ReLU.Activate(-3))

	assert.Equal(t, 1.0, ReLU.Derivative(5))
	assert.Equal(t, 0.0, ReLU.Derivative(-3))
	assert.Equal(t, 0.0, ReLU.Derivative(0), "slope at exactly zero is defined as 0")
}

func TestSigmoidActivateAndDerivative(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid.Activate(0), 1e-12)
	assert.Greater(t, Sigmoid.Activate(10), 0.99)
	assert.Less(t, Sigmoid.Activate(-10), 0.01)

	assert.InDelta(t, 0.25, Sigmoid.Derivative(0), 1e-12)
	assert.Greater(t, Sigmoid.Derivative(0), Sigmoid.Derivative(2))
	assert.Greater(t, Sigmoid.Derivative(0), Sigmoid.Derivative(-2))
}

func TestSigmoidSurvivesExtremeInputs(t *testing.T) {
	for _, x := range []float64{-1e6, -800, 800, 1e6} {
		got := Sigmoid.Activate(x)
		require.False(t, math.IsNaN(got) || math.IsInf(got, 0), "sigmoid(%g)=%g", x, got)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 1.0)
		require.False(t, math.IsNaN(Sigmoid.Derivative(x)))
	}
}

func TestParseActivation(t *testing.T) {
	got, err := ParseActivation(" ReLU ")
	require.NoError(t, err)
	assert.Equal(t, ReLU, got)

	got, err = ParseActivation("sigmoid")
	require.NoError(t, err)
	assert.Equal(t, Sigmoid, got)

	_, err = ParseActivation("tanh")
	require.True(t, errors.Is(err, ErrActivationNotFound), "got %v", err)

	assert.Equal(t, []string{"relu", "sigmoid"}, Activations())
	assert.False(t, Activation(0).Valid())
	assert.Panics(t, func() { Activation(42).Activate(1) })
}
