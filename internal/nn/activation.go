package nn

import (
	"fmt"
	"math"
	"strings"
)

// Activation is the pointwise nonlinearity a Layer applies to each weighted sum.
type Activation int

const (
	ReLU Activation = iota + 1
	Sigmoid
)

// sigmoidSpread keeps math.Exp far from overflow for arbitrary inputs.
const sigmoidSpread = 500.0

var activationNames = map[Activation]string{
	ReLU:    "relu",
	Sigmoid: "sigmoid",
}

// ParseActivation resolves a configured activation name.
func ParseActivation(name string) (Activation, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for activation, activationName := range activationNames {
		if activationName == key {
			return activation, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
}

// Activations lists the supported activation names in declaration order.
func Activations() []string {
	return []string{ReLU.String(), Sigmoid.String()}
}

func (a Activation) String() string {
	if name, ok := activationNames[a]; ok {
		return name
	}
	return fmt.Sprintf("activation(%d)", int(a))
}

// Valid reports whether a is one of the declared variants.
func (a Activation) Valid() bool {
	_, ok := activationNames[a]
	return ok
}

// Activate applies the nonlinearity to a pre-activation value.
func (a Activation) Activate(x float64) float64 {
	switch a {
	case ReLU:
		return math.Max(0, x)
	case Sigmoid:
		return 1.0 / (1.0 + math.Exp(-Clamp(x, sigmoidSpread)))
	default:
		panic(fmt.Sprintf("nn: unsupported activation %d", int(a)))
	}
}

// Derivative evaluates the slope at the pre-activation value x.
// ReLU has slope 0 at exactly 0.
func (a Activation) Derivative(x float64) float64 {
	switch a {
	case ReLU:
		if x > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		s := a.Activate(x)
		return s * (1 - s)
	default:
		panic(fmt.Sprintf("nn: unsupported activation %d", int(a)))
	}
}
