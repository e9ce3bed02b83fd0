package nn

import (
	"fmt"

	"backprop/internal/model"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

// LayerState is a copied view of one layer's parameters.
type LayerState struct {
	Activation Activation
	Weights    [][]float64
	Biases     []float64
}

// Snapshot is an immutable copy of a model's parameters. It never shares
// memory with the model it was taken from, and every accessor returns copies.
type Snapshot struct {
	layers []LayerState
	loss   Loss
}

// Snapshot copies the current weights and biases.
func (m *Model) Snapshot() Snapshot {
	layers := make([]LayerState, len(m.layers))
	for i, layer := range m.layers {
		layers[i] = layerState(layer)
	}
	return Snapshot{layers: layers, loss: m.loss}
}

func layerState(layer *Layer) LayerState {
	state := LayerState{
		Activation: layer.activation,
		Weights:    make([][]float64, len(layer.units)),
		Biases:     make([]float64, len(layer.units)),
	}
	for i, unit := range layer.units {
		state.Weights[i] = append([]float64(nil), unit.weights...)
		state.Biases[i] = unit.bias
	}
	return state
}

func (s Snapshot) NumLayers() int {
	return len(s.layers)
}

func (s Snapshot) Loss() Loss {
	return s.loss
}

// Layer returns a deep copy of layer i.
func (s Snapshot) Layer(i int) LayerState {
	src := s.layers[i]
	out := LayerState{
		Activation: src.Activation,
		Weights:    make([][]float64, len(src.Weights)),
		Biases:     append([]float64(nil), src.Biases...),
	}
	for u, row := range src.Weights {
		out.Weights[u] = append([]float64(nil), row...)
	}
	return out
}

// Topology returns the input size followed by every layer's unit count.
func (s Snapshot) Topology() []int {
	if len(s.layers) == 0 {
		return nil
	}
	sizes := make([]int, 0, len(s.layers)+1)
	sizes = append(sizes, len(s.layers[0].Weights[0]))
	for _, layer := range s.layers {
		sizes = append(sizes, len(layer.Biases))
	}
	return sizes
}

func (s Snapshot) ParameterCount() int {
	count := 0
	for _, layer := range s.layers {
		for _, row := range layer.Weights {
			count += len(row) + 1
		}
	}
	return count
}

// Predict runs a forward pass over the copied parameters. It keeps no
// caches, so it is safe to call from several goroutines.
func (s Snapshot) Predict(input []float64) ([]float64, error) {
	if len(s.layers) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrInvalidLayer)
	}
	current := input
	for li, layer := range s.layers {
		next := make([]float64, len(layer.Weights))
		for u, row := range layer.Weights {
			sum, err := Unit{weights: row, bias: layer.Biases[u]}.Forward(current)
			if err != nil {
				return nil, fmt.Errorf("layer %d unit %d: %w", li, u, err)
			}
			next[u] = layer.Activation.Activate(sum)
		}
		current = next
	}
	return current, nil
}

// Model rebuilds an independent, trainable model from the snapshot.
func (s Snapshot) Model() (*Model, error) {
	layers := make([]*Layer, len(s.layers))
	for i, state := range s.layers {
		units := make([]Unit, len(state.Weights))
		for u, row := range state.Weights {
			units[u] = NewUnit(row, state.Biases[u])
		}
		layer, err := NewLayer(units, state.Activation)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = layer
	}
	m, err := NewModel(layers...)
	if err != nil {
		return nil, err
	}
	m.loss = s.loss
	return m, nil
}

// Record converts the snapshot into its persisted form.
func (s Snapshot) Record() model.Network {
	record := model.Network{
		VersionedRecord: model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion},
		Loss:            s.loss.String(),
		Layers:          make([]model.Layer, len(s.layers)),
	}
	for i, layer := range s.layers {
		units := make([]model.Unit, len(layer.Weights))
		for u, row := range layer.Weights {
			units[u] = model.Unit{Weights: append([]float64(nil), row...), Bias: layer.Biases[u]}
		}
		record.Layers[i] = model.Layer{Activation: layer.Activation.String(), Units: units}
	}
	return record
}

// FromRecord validates a persisted network and returns it as a snapshot.
func FromRecord(record model.Network) (Snapshot, error) {
	loss, err := ParseLoss(record.Loss)
	if err != nil {
		return Snapshot{}, err
	}
	layers := make([]*Layer, len(record.Layers))
	for i, layerRecord := range record.Layers {
		activation, err := ParseActivation(layerRecord.Activation)
		if err != nil {
			return Snapshot{}, fmt.Errorf("layer %d: %w", i, err)
		}
		units := make([]Unit, len(layerRecord.Units))
		for u, unit := range layerRecord.Units {
			units[u] = NewUnit(unit.Weights, unit.Bias)
		}
		layer, err := NewLayer(units, activation)
		if err != nil {
			return Snapshot{}, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = layer
	}
	m, err := NewModel(layers...)
	if err != nil {
		return Snapshot{}, err
	}
	m.loss = loss
	return m.Snapshot(), nil
}
