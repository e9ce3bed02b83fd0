package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"backprop/internal/nn"
	"backprop/internal/stats"
)

// runDetail is what a run directory says about a finished run.
type runDetail struct {
	Config     stats.RunConfig `json:"config"`
	Parameters int             `json:"parameters"`
	Layers     []layerDetail   `json:"layers"`
	Evaluation *nn.Evaluation  `json:"evaluation,omitempty"`
}

type layerDetail struct {
	Activation string  `json:"activation"`
	Inputs     int     `json:"inputs"`
	Units      int     `json:"units"`
	MeanBias   float64 `json:"mean_bias"`
}

func loadRunDetail(baseDir, runID string) (runDetail, error) {
	cfg, ok, err := stats.ReadRunConfig(baseDir, runID)
	if err != nil {
		return runDetail{}, err
	}
	if !ok {
		return runDetail{}, fmt.Errorf("run not found: %s", runID)
	}
	record, ok, err := stats.ReadModel(baseDir, runID)
	if err != nil {
		return runDetail{}, err
	}
	if !ok {
		return runDetail{}, fmt.Errorf("model not found for run id: %s", runID)
	}
	snapshot, err := nn.FromRecord(record)
	if err != nil {
		return runDetail{}, fmt.Errorf("model %s: %w", runID, err)
	}

	detail := runDetail{
		Config:     cfg,
		Parameters: snapshot.ParameterCount(),
		Layers:     make([]layerDetail, 0, snapshot.NumLayers()),
	}
	for i := 0; i < snapshot.NumLayers(); i++ {
		layer := snapshot.Layer(i)
		mean, _ := nn.Mean(layer.Biases)
		detail.Layers = append(detail.Layers, layerDetail{
			Activation: layer.Activation.String(),
			Inputs:     len(layer.Weights[0]),
			Units:      len(layer.Biases),
			MeanBias:   mean,
		})
	}

	evaluation, ok, err := stats.ReadEvaluation(baseDir, runID)
	if err != nil {
		return runDetail{}, err
	}
	if ok {
		detail.Evaluation = &evaluation
	}
	return detail, nil
}

func (d runDetail) Lines() []string {
	cfg := d.Config
	lines := []string{
		fmt.Sprintf("run_id=%s dataset=%s split=%g normalization=%s seed=%d", cfg.RunID, cfg.Dataset, cfg.SplitRatio, orNone(cfg.Normalization), cfg.Seed),
		fmt.Sprintf("topology=%v params=%s loss=%s lr=%g epoch_limit=%s", cfg.Topology, humanize.Comma(int64(d.Parameters)), cfg.Loss, cfg.LearningRate, humanize.Comma(int64(cfg.EpochLimit))),
	}
	for i, layer := range d.Layers {
		lines = append(lines, fmt.Sprintf("layer=%d activation=%s shape=%dx%d mean_bias=%.6f", i, layer.Activation, layer.Units, layer.Inputs, layer.MeanBias))
	}
	if d.Evaluation != nil {
		lines = append(lines, fmt.Sprintf("evaluation examples=%d loss=%.6f accuracy=%.4f threshold=%g", d.Evaluation.Examples, d.Evaluation.Loss, d.Evaluation.Accuracy, cfg.Threshold))
	} else {
		lines = append(lines, "evaluation=none")
	}
	return lines
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
