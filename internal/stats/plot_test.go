package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildLossPlot(t *testing.T) {
	points := BuildLossPlot([]float64{4, 2, 3, 1, 5}, 2)
	assert.Equal(t, []PlotPoint{
		{Epoch: 2, Value: 3},
		{Epoch: 4, Value: 2},
		{Epoch: 5, Value: 5},
	}, points)

	assert.Len(t, BuildLossPlot([]float64{1, 2, 3}, 0), 3)
	assert.Empty(t, BuildLossPlot(nil, 10))
}

func TestSummarizeLoss(t *testing.T) {
	summary := SummarizeLoss([]float64{0.8, 0.2, 0.4, 0.6})
	assert.Equal(t, 4, summary.Epochs)
	assert.Equal(t, 0.8, summary.Initial)
	assert.Equal(t, 0.6, summary.Final)
	assert.Equal(t, 0.2, summary.Best)
	assert.Equal(t, 2, summary.BestEpoch)
	assert.InDelta(t, 0.5, summary.Mean, 1e-12)
	assert.InDelta(t, 0.2236068, summary.Std, 1e-6)

	assert.Equal(t, LossSummary{}, SummarizeLoss(nil))
}
