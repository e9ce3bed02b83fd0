package nn

import "fmt"

// Example is one training record.
type Example struct {
	Features []float64
	Target   []float64
}

// Model is an ordered stack of dense layers trained with plain SGD.
// A Model is not safe for concurrent use.
type Model struct {
	layers []*Layer
	loss   Loss
}

// NewModel takes ownership of layers and checks that adjacent layers agree
// on their shared dimension.
func NewModel(layers ...*Layer) (*Model, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: model needs at least one layer", ErrInvalidLayer)
	}
	for i, layer := range layers {
		if layer == nil {
			return nil, fmt.Errorf("%w: layer %d is nil", ErrInvalidLayer, i)
		}
		if i == 0 {
			continue
		}
		if prev := layers[i-1]; prev.OutputSize() != layer.InputSize() {
			return nil, fmt.Errorf("%w: layer %d outputs %d values, layer %d expects %d", ErrDimensionMismatch, i-1, prev.OutputSize(), i, layer.InputSize())
		}
	}
	return &Model{
		layers: append([]*Layer(nil), layers...),
		loss:   SumSquaredError,
	}, nil
}

func (m *Model) InputSize() int {
	return m.layers[0].InputSize()
}

func (m *Model) OutputSize() int {
	return m.layers[len(m.layers)-1].OutputSize()
}

func (m *Model) NumLayers() int {
	return len(m.layers)
}

func (m *Model) Loss() Loss {
	return m.loss
}

// Layer exposes layer i. Callers outside this package should prefer Snapshot.
func (m *Model) Layer(i int) *Layer {
	return m.layers[i]
}

func (m *Model) Forward(input []float64) ([]float64, error) {
	current := input
	for i, layer := range m.layers {
		next, err := layer.Forward(current)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		current = next
	}
	return current, nil
}

// Train runs one forward/backward step and returns the loss measured before
// the weights were updated.
func (m *Model) Train(input, target []float64, learningRate float64) (float64, error) {
	if len(target) != m.OutputSize() {
		return 0, fmt.Errorf("%w: model outputs %d values, target has %d", ErrDimensionMismatch, m.OutputSize(), len(target))
	}
	prediction, err := m.Forward(input)
	if err != nil {
		return 0, err
	}
	loss, err := m.loss.Total(prediction, target)
	if err != nil {
		return 0, err
	}
	gradients, err := m.loss.Gradient(prediction, target)
	if err != nil {
		return 0, err
	}
	for i := len(m.layers) - 1; i >= 0; i-- {
		gradients, err = m.layers[i].Backward(gradients, learningRate)
		if err != nil {
			return 0, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return loss, nil
}

// TrainEpoch trains on every example once, in the given order, and returns
// the mean loss.
func (m *Model) TrainEpoch(examples []Example, learningRate float64) (float64, error) {
	if len(examples) == 0 {
		return 0, ErrEmptyDataset
	}
	total := 0.0
	for i, example := range examples {
		loss, err := m.Train(example.Features, example.Target, learningRate)
		if err != nil {
			return 0, fmt.Errorf("example %d: %w", i, err)
		}
		total += loss
	}
	return total / float64(len(examples)), nil
}

// Clone returns a deep copy with empty forward caches.
func (m *Model) Clone() *Model {
	layers := make([]*Layer, len(m.layers))
	for i, layer := range m.layers {
		layers[i] = layer.clone()
	}
	return &Model{layers: layers, loss: m.loss}
}

// CheckExamples verifies that every example fits the model's input and
// output dimensions.
func (m *Model) CheckExamples(examples []Example) error {
	for i, example := range examples {
		if len(example.Features) != m.InputSize() {
			return fmt.Errorf("%w: example %d has %d features, model expects %d", ErrDimensionMismatch, i, len(example.Features), m.InputSize())
		}
		if len(example.Target) != m.OutputSize() {
			return fmt.Errorf("%w: example %d has %d targets, model outputs %d", ErrDimensionMismatch, i, len(example.Target), m.OutputSize())
		}
	}
	return nil
}
