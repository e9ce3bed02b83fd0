package monitor

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"backprop/internal/nn"
	"backprop/internal/trainer"
)

// Source is the read side of a training run. *trainer.Orchestrator
// satisfies it.
type Source interface {
	Status() trainer.Status
	Snapshot() (nn.Snapshot, error)
	EpochLimit() int
	Done() <-chan struct{}
}

// LayerView is one layer's parameters laid out as a units x inputs matrix.
type LayerView struct {
	Activation   nn.Activation
	Weights      *mat.Dense
	Biases       []float64
	MaxAbsWeight float64
	Norm         float64
}

type Frame struct {
	Epoch      int
	EpochLimit int
	Loss       float64
	State      trainer.State
	Layers     []LayerView
}

// Progress is the completed fraction of the epoch budget.
func (f Frame) Progress() float64 {
	if f.EpochLimit <= 0 {
		return 0
	}
	return math.Min(1, float64(f.Epoch)/float64(f.EpochLimit))
}

// BuildFrame reads status first and the snapshot second, so the weights are
// never older than the reported epoch.
func BuildFrame(src Source) (Frame, error) {
	status := src.Status()
	snapshot, err := src.Snapshot()
	if err != nil {
		return Frame{}, err
	}
	frame := Frame{
		Epoch:      status.Epoch,
		EpochLimit: src.EpochLimit(),
		Loss:       status.Loss,
		State:      status.State,
		Layers:     make([]LayerView, 0, snapshot.NumLayers()),
	}
	for i := 0; i < snapshot.NumLayers(); i++ {
		frame.Layers = append(frame.Layers, viewLayer(snapshot.Layer(i)))
	}
	return frame, nil
}

func viewLayer(layer nn.LayerState) LayerView {
	rows := len(layer.Weights)
	cols := 0
	if rows > 0 {
		cols = len(layer.Weights[0])
	}
	view := LayerView{Activation: layer.Activation, Biases: layer.Biases}
	if rows == 0 || cols == 0 {
		return view
	}
	data := make([]float64, 0, rows*cols)
	for _, row := range layer.Weights {
		data = append(data, row...)
	}
	w := mat.NewDense(rows, cols, data)
	view.Weights = w
	// Frobenius norm.
	view.Norm = mat.Norm(w, 2)
	for _, v := range data {
		view.MaxAbsWeight = math.Max(view.MaxAbsWeight, math.Abs(v))
	}
	return view
}
