package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"backprop/pkg/backprop"
)

// loadTrainRequestFromConfig reads a flat JSON object whose keys mirror the
// train flags with underscores, e.g. {"dataset": "xor", "hidden": [4, 2]}.
func loadTrainRequestFromConfig(path string) (backprop.TrainRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backprop.TrainRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return backprop.TrainRequest{}, err
	}

	var req backprop.TrainRequest
	if v, ok := asString(raw["dataset"]); ok {
		req.Dataset = v
	}
	if v, ok := asInt(raw["features"]); ok {
		req.FeatureCount = v
	}
	if v, ok := asBool(raw["skip_header"]); ok {
		req.SkipHeader = v
	}
	if v, ok := asFloat64(raw["split_ratio"]); ok {
		req.SplitRatio = v
	}
	if v, ok := asString(raw["normalization"]); ok {
		req.Normalization = v
	}
	switch v := raw["hidden"].(type) {
	case nil:
	case string:
		sizes, err := parseHidden(v)
		if err != nil {
			return backprop.TrainRequest{}, err
		}
		req.Hidden = sizes
	case []any:
		sizes := make([]int, 0, len(v))
		for i, item := range v {
			size, ok := asInt(item)
			if !ok {
				return backprop.TrainRequest{}, fmt.Errorf("hidden[%d] must be a number", i)
			}
			sizes = append(sizes, size)
		}
		req.Hidden = sizes
	default:
		return backprop.TrainRequest{}, fmt.Errorf("hidden must be a list of sizes")
	}
	if v, ok := asString(raw["hidden_activation"]); ok {
		req.HiddenAct = v
	}
	if v, ok := asString(raw["output_activation"]); ok {
		req.OutputAct = v
	}
	if v, ok := asFloat64(raw["learning_rate"]); ok {
		req.LearningRate = v
	}
	if v, ok := asInt(raw["epochs"]); ok {
		req.Epochs = v
	}
	if v, ok := asInt(raw["yield_ms"]); ok {
		req.Yield = time.Duration(v) * time.Millisecond
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asBool(raw["start_paused"]); ok {
		req.StartPaused = v
	}
	if v, ok := asInt(raw["checkpoint_every"]); ok {
		req.CheckpointEvery = v
	}
	if v, ok := asFloat64(raw["threshold"]); ok {
		req.Threshold = v
	}
	if v, ok := asInt(raw["frame_ms"]); ok {
		req.FrameInterval = time.Duration(v) * time.Millisecond
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags the user set explicitly, so a
// config file keeps its values for everything else.
func overrideFromFlags(req *backprop.TrainRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "dataset":
			req.Dataset = v.(string)
		case "features":
			req.FeatureCount = v.(int)
		case "skip-header":
			req.SkipHeader = v.(bool)
		case "split":
			req.SplitRatio = v.(float64)
		case "normalize":
			req.Normalization = v.(string)
		case "hidden":
			req.Hidden = v.([]int)
		case "hidden-act":
			req.HiddenAct = v.(string)
		case "output-act":
			req.OutputAct = v.(string)
		case "lr":
			req.LearningRate = v.(float64)
		case "epochs":
			req.Epochs = v.(int)
		case "yield-ms":
			req.Yield = time.Duration(v.(int)) * time.Millisecond
		case "seed":
			req.Seed = v.(int64)
		case "start-paused":
			req.StartPaused = v.(bool)
		case "checkpoint-every":
			req.CheckpointEvery = v.(int)
		case "threshold":
			req.Threshold = v.(float64)
		case "frame-ms":
			req.FrameInterval = time.Duration(v.(int)) * time.Millisecond
		}
	}
	if req.Dataset == "" {
		req.Dataset = "xor"
	}
	if req.LearningRate < 0 {
		return fmt.Errorf("learning rate must be > 0 (got %g)", req.LearningRate)
	}
	return nil
}

func loadOrDefaultTrainRequest(configPath string) (backprop.TrainRequest, error) {
	if configPath == "" {
		return backprop.TrainRequest{}, nil
	}
	req, err := loadTrainRequestFromConfig(configPath)
	if err != nil {
		return backprop.TrainRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

// parseHidden turns "8,4" into [8 4]. An empty string means no hidden layer.
func parseHidden(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []int{}, nil
	}
	parts := strings.Split(raw, ",")
	sizes := make([]int, 0, len(parts))
	for _, part := range parts {
		size, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid hidden layer size %q", part)
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}
