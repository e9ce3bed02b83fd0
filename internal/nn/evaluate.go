package nn

import "fmt"

// Evaluation summarises a snapshot on held-out examples.
type Evaluation struct {
	Examples int     `json:"examples"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// Evaluate reports the mean loss and the fraction of examples whose every
// output lands on the same side of threshold as its target.
func Evaluate(snapshot Snapshot, examples []Example, threshold float64) (Evaluation, error) {
	if len(examples) == 0 {
		return Evaluation{}, ErrEmptyDataset
	}
	total := 0.0
	correct := 0
	for i, example := range examples {
		prediction, err := snapshot.Predict(example.Features)
		if err != nil {
			return Evaluation{}, fmt.Errorf("example %d: %w", i, err)
		}
		loss, err := snapshot.loss.Total(prediction, example.Target)
		if err != nil {
			return Evaluation{}, fmt.Errorf("example %d: %w", i, err)
		}
		total += loss
		if classifiedAlike(prediction, example.Target, threshold) {
			correct++
		}
	}
	n := float64(len(examples))
	return Evaluation{
		Examples: len(examples),
		Loss:     total / n,
		Accuracy: float64(correct) / n,
	}, nil
}

func classifiedAlike(prediction, target []float64, threshold float64) bool {
	for k := range prediction {
		if (prediction[k] >= threshold) != (target[k] >= threshold) {
			return false
		}
	}
	return true
}
