package stats

import (
	"math"

	"backprop/internal/nn"
)

type PlotPoint struct {
	Epoch int     `json:"epoch"`
	Value float64 `json:"value"`
}

// BuildLossPlot averages history over consecutive windows of epochs. Each
// point is labelled with the last epoch of its window; a trailing partial
// window is kept.
func BuildLossPlot(history []float64, window int) []PlotPoint {
	if window <= 0 {
		window = 1
	}
	points := make([]PlotPoint, 0, len(history)/window+1)
	for start := 0; start < len(history); start += window {
		end := start + window
		if end > len(history) {
			end = len(history)
		}
		avg, _ := nn.Mean(history[start:end])
		points = append(points, PlotPoint{Epoch: end, Value: avg})
	}
	return points
}

// LossSummary describes a finished loss history.
type LossSummary struct {
	Epochs    int     `json:"epochs"`
	Initial   float64 `json:"initial"`
	Final     float64 `json:"final"`
	Best      float64 `json:"best"`
	BestEpoch int     `json:"best_epoch"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
}

func SummarizeLoss(history []float64) LossSummary {
	if len(history) == 0 {
		return LossSummary{}
	}
	summary := LossSummary{
		Epochs:  len(history),
		Initial: history[0],
		Final:   history[len(history)-1],
		Best:    math.Inf(1),
	}
	for i, v := range history {
		if v < summary.Best {
			summary.Best = v
			summary.BestEpoch = i + 1
		}
	}
	summary.Mean, _ = nn.Mean(history)
	summary.Std, _ = nn.PopStdDev(history)
	return summary
}
