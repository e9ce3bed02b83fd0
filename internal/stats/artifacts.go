package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"backprop/internal/model"
	"backprop/internal/nn"
)

const runIndexFile = "run_index.json"

var runFiles = []string{"config.json", "loss_history.json", "loss_history.csv", "model.json", "evaluation.json"}

// RunConfig is the resolved configuration a run was started with.
type RunConfig struct {
	RunID         string  `json:"run_id"`
	Dataset       string  `json:"dataset"`
	SplitRatio    float64 `json:"split_ratio"`
	Normalization string  `json:"normalization,omitempty"`
	Topology      []int   `json:"topology"`
	Hidden        string  `json:"hidden_activation"`
	Output        string  `json:"output_activation"`
	Loss          string  `json:"loss"`
	LearningRate  float64 `json:"learning_rate"`
	EpochLimit    int     `json:"epoch_limit"`
	YieldMS       int64   `json:"yield_ms"`
	Seed          int64   `json:"seed"`
	StartPaused   bool    `json:"start_paused"`
	CheckpointN   int     `json:"checkpoint_every"`
	Threshold     float64 `json:"threshold"`
}

type RunArtifacts struct {
	Config      RunConfig
	State       string
	LossHistory []float64
	Network     model.Network
	Evaluation  *nn.Evaluation
}

type RunIndexEntry struct {
	RunID        string   `json:"run_id"`
	Dataset      string   `json:"dataset"`
	Topology     []int    `json:"topology"`
	LearningRate float64  `json:"learning_rate"`
	Seed         int64    `json:"seed"`
	State        string   `json:"state"`
	Epochs       int      `json:"epochs"`
	FinalLoss    float64  `json:"final_loss"`
	TestAccuracy *float64 `json:"test_accuracy,omitempty"`
	CreatedAtUTC string   `json:"created_at_utc"`
}

// WriteRunArtifacts writes one directory per run under baseDir and returns
// its path. evaluation.json is only written when an evaluation exists.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	final := 0.0
	if n := len(artifacts.LossHistory); n > 0 {
		final = artifacts.LossHistory[n-1]
	}
	if err := writeJSON(filepath.Join(runDir, "loss_history.json"), map[string]any{
		"state":      artifacts.State,
		"loss":       nonNil(artifacts.LossHistory),
		"final_loss": final,
	}); err != nil {
		return "", err
	}
	if err := WriteLossSeries(runDir, artifacts.LossHistory); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "model.json"), artifacts.Network); err != nil {
		return "", err
	}
	if artifacts.Evaluation != nil {
		if err := writeJSON(filepath.Join(runDir, "evaluation.json"), artifacts.Evaluation); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

// AppendRunIndex adds entry to baseDir's run index, replacing any entry with
// the same run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ReadRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ReadRunIndex returns the index newest first. A missing index is empty.
func ReadRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run's files to outDir/<runID>. Files the run
// never wrote are skipped.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range runFiles {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadModel(baseDir, runID string) (model.Network, bool, error) {
	var network model.Network
	ok, err := readJSON(filepath.Join(baseDir, runID, "model.json"), &network)
	return network, ok, err
}

func ReadEvaluation(baseDir, runID string) (nn.Evaluation, bool, error) {
	var evaluation nn.Evaluation
	ok, err := readJSON(filepath.Join(baseDir, runID, "evaluation.json"), &evaluation)
	return evaluation, ok, err
}

// WriteLossSeries writes loss_history.csv with one row per epoch.
func WriteLossSeries(runDir string, history []float64) error {
	path := filepath.Join(runDir, "loss_history.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"epoch", "loss"}); err != nil {
		return err
	}
	for i, loss := range history {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(loss, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadLossSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, "loss_history.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("loss series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("loss series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func nonNil(values []float64) []float64 {
	if values == nil {
		return []float64{}
	}
	return values
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
