package dataset

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"backprop/internal/nn"
)

// Method selects how feature columns are rescaled.
type Method string

const (
	MethodNone   Method = "none"
	MethodMax    Method = "max"
	MethodZScore Method = "zscore"
)

func ParseMethod(raw string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MethodNone:
		return MethodNone, nil
	case MethodMax:
		return MethodMax, nil
	case MethodZScore, "z-score", "standard":
		return MethodZScore, nil
	default:
		return "", errors.Errorf("unsupported normalization %q", raw)
	}
}

type ColumnStats struct {
	Min    float64 `json:"min"`
	Avg    float64 `json:"avg"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// ColumnStatistics summarises every feature column of examples.
func ColumnStatistics(examples []nn.Example) ([]ColumnStats, error) {
	if len(examples) == 0 {
		return nil, nn.ErrEmptyDataset
	}
	columns, err := featureColumns(examples)
	if err != nil {
		return nil, err
	}
	out := make([]ColumnStats, len(columns))
	for i, column := range columns {
		minV, maxV := column[0], column[0]
		for _, v := range column[1:] {
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
		mean, std := stat.MeanStdDev(column, nil)
		if len(column) < 2 {
			std = 0
		}
		out[i] = ColumnStats{Min: minV, Avg: mean, Max: maxV, StdDev: std}
	}
	return out, nil
}

// Normalize rescales the features of both partitions in place using
// statistics taken from Train only, and returns those statistics.
func Normalize(split *Split, method Method) ([]ColumnStats, error) {
	if method == MethodNone || method == "" {
		return nil, nil
	}
	stats, err := ColumnStatistics(split.Train)
	if err != nil {
		return nil, errors.Wrap(err, "normalize")
	}
	var scale func(col int, v float64) float64
	switch method {
	case MethodMax:
		scale = func(col int, v float64) float64 {
			limit := math.Max(math.Abs(stats[col].Min), math.Abs(stats[col].Max))
			if limit == 0 {
				return 0
			}
			return v / limit
		}
	case MethodZScore:
		scale = func(col int, v float64) float64 {
			centered := v - stats[col].Avg
			if stats[col].StdDev == 0 || math.IsNaN(stats[col].StdDev) {
				return centered
			}
			return centered / stats[col].StdDev
		}
	default:
		return nil, errors.Errorf("unsupported normalization %q", method)
	}

	for _, part := range [][]nn.Example{split.Train, split.Test} {
		for i, example := range part {
			if len(example.Features) != len(stats) {
				return nil, errors.Wrapf(nn.ErrDimensionMismatch, "example %d has %d features, want %d", i, len(example.Features), len(stats))
			}
			for col, v := range example.Features {
				example.Features[col] = scale(col, v)
			}
		}
	}
	return stats, nil
}

func featureColumns(examples []nn.Example) ([][]float64, error) {
	width := len(examples[0].Features)
	columns := make([][]float64, width)
	for col := range columns {
		columns[col] = make([]float64, len(examples))
	}
	for i, example := range examples {
		if len(example.Features) != width {
			return nil, errors.Wrapf(nn.ErrDimensionMismatch, "example %d has %d features, want %d", i, len(example.Features), width)
		}
		for col, v := range example.Features {
			columns[col][i] = v
		}
	}
	return columns, nil
}
