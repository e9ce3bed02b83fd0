package dataset

import (
	"encoding/csv"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"backprop/internal/nn"
)

// SpambaseFeatures is the feature width of the reference spam dataset.
const SpambaseFeatures = 57

var (
	ErrDataFormat   = errors.New("malformed data record")
	ErrInvalidSplit = errors.New("split ratio must be within [0, 1]")
)

// Split holds the two partitions produced by a Provider.
type Split struct {
	Train []nn.Example
	Test  []nn.Example
}

func (s Split) Total() int {
	return len(s.Train) + len(s.Test)
}

// Provider loads labelled examples and partitions them.
type Provider interface {
	Load(path string, splitRatio float64) (Split, error)
}

// CSVProvider reads comma separated rows of features followed by targets.
type CSVProvider struct {
	// FeatureCount fixes the feature width. Zero infers it from the first
	// record as every column except the trailing targets.
	FeatureCount int
	// TargetCount defaults to 1.
	TargetCount int
	SkipHeader  bool
	Comma       rune
	// Rand shuffles the records once, after the whole file is read. A nil
	// Rand keeps file order.
	Rand *rand.Rand
}

func (p CSVProvider) Load(path string, splitRatio float64) (Split, error) {
	f, err := os.Open(path)
	if err != nil {
		return Split{}, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	split, err := p.Read(f, splitRatio)
	if err != nil {
		return Split{}, errors.Wrapf(err, "load %s", path)
	}
	return split, nil
}

// Read parses r, shuffles once when configured and splits the records.
func (p CSVProvider) Read(r io.Reader, splitRatio float64) (Split, error) {
	if !(splitRatio >= 0 && splitRatio <= 1) {
		return Split{}, errors.Wrapf(ErrInvalidSplit, "got %g", splitRatio)
	}
	examples, err := p.parse(r)
	if err != nil {
		return Split{}, err
	}
	if p.Rand != nil {
		Shuffle(p.Rand, examples)
	}
	return SplitExamples(examples, splitRatio)
}

func (p CSVProvider) parse(r io.Reader) ([]nn.Example, error) {
	targets := p.TargetCount
	if targets <= 0 {
		targets = 1
	}
	features := p.FeatureCount
	if features < 0 {
		return nil, errors.Errorf("feature count must be >= 0 (got %d)", features)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if p.Comma != 0 {
		reader.Comma = p.Comma
	}

	examples := make([]nn.Example, 0, 1024)
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrDataFormat, "%v", err)
		}
		line, _ := reader.FieldPos(0)
		if first && p.SkipHeader {
			first = false
			continue
		}
		first = false
		if blankRecord(record) {
			continue
		}
		if features == 0 {
			features = len(record) - targets
			if features <= 0 {
				return nil, errors.Wrapf(ErrDataFormat, "line %d: %d fields leave no room for features", line, len(record))
			}
		}
		if len(record) != features+targets {
			return nil, errors.Wrapf(ErrDataFormat, "line %d: got %d fields, want %d", line, len(record), features+targets)
		}

		values := make([]float64, len(record))
		for col, field := range record {
			value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.Wrapf(ErrDataFormat, "line %d column %d: %v", line, col+1, err)
			}
			values[col] = value
		}
		examples = append(examples, nn.Example{
			Features: values[:features:features],
			Target:   values[features:],
		})
	}
	return examples, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
