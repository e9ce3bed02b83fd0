package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Network is the persisted form of a trained model.
type Network struct {
	VersionedRecord
	Loss   string  `json:"loss"`
	Layers []Layer `json:"layers"`
}

type Layer struct {
	Activation string `json:"activation"`
	Units      []Unit `json:"units"`
}

type Unit struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// Run describes one training run and where it ended up.
type Run struct {
	VersionedRecord
	ID           string   `json:"id"`
	CreatedAtUTC string   `json:"created_at_utc"`
	Dataset      string   `json:"dataset"`
	Topology     []int    `json:"topology"`
	Hidden       string   `json:"hidden_activation"`
	Output       string   `json:"output_activation"`
	LearningRate float64  `json:"learning_rate"`
	EpochLimit   int      `json:"epoch_limit"`
	Seed         int64    `json:"seed"`
	State        string   `json:"state"`
	Epochs       int      `json:"epochs"`
	FinalLoss    float64  `json:"final_loss"`
	TestLoss     *float64 `json:"test_loss,omitempty"`
	TestAccuracy *float64 `json:"test_accuracy,omitempty"`
}

// Checkpoint is a network captured at the end of a given epoch.
type Checkpoint struct {
	VersionedRecord
	RunID   string  `json:"run_id"`
	Epoch   int     `json:"epoch"`
	Loss    float64 `json:"loss"`
	Network Network `json:"network"`
}
