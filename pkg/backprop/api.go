package backprop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"backprop/internal/dataset"
	"backprop/internal/model"
	"backprop/internal/monitor"
	"backprop/internal/nn"
	"backprop/internal/platform"
	"backprop/internal/stats"
	"backprop/internal/storage"
	"backprop/internal/trainer"
)

const (
	defaultRunsDir         = "runs"
	defaultExportsDir      = "exports"
	defaultDBPath          = "backprop.db"
	defaultLearningRate    = 0.1
	defaultSplitRatio      = 0.8
	defaultThreshold       = 0.5
	defaultCheckpointEvery = 10
	defaultFrameInterval   = 100 * time.Millisecond
	defaultLinearExamples  = 200
	defaultLinearDims      = 2

	// Fixed width so stored timestamps sort lexically.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var ErrNoRuns = errors.New("no runs available")

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	// Logger defaults to the standard logger.
	Logger *log.Logger
}

// Client trains models and manages the runs it has persisted. A Client may
// drive several concurrent Train calls.
type Client struct {
	store    storage.Store
	registry *platform.Registry
	logger   *log.Logger

	runsDir    string
	exportsDir string

	initMu      sync.Mutex
	initialized bool
}

type TrainRequest struct {
	// Dataset is "xor", "linear" or the path of a CSV file.
	Dataset      string
	FeatureCount int
	SkipHeader   bool
	// SplitRatio is the training share. Zero means 1 for xor and 0.8
	// otherwise.
	SplitRatio    float64
	Normalization string
	Hidden        []int
	HiddenAct     string
	OutputAct     string
	LearningRate  float64
	Epochs        int
	Yield         time.Duration
	// Seed drives shuffling and weight initialisation. Zero picks one from
	// the clock; the chosen seed is reported in the summary.
	Seed        int64
	StartPaused bool
	// CheckpointEvery persists the model every N epochs. Zero means 10, a
	// negative value only keeps the final checkpoint.
	CheckpointEvery int
	FrameInterval   time.Duration
	Threshold       float64
	LinearExamples  int
	LinearDims      int
}

// Observer receives progress frames on the goroutine that called Train.
type Observer func(monitor.Frame)

type TrainSummary struct {
	RunID        string
	ArtifactsDir string
	State        string
	Seed         int64
	Topology     []int
	Parameters   int
	Epochs       int
	FinalLoss    float64
	LossHistory  []float64
	Evaluation   *nn.Evaluation
	EvaluatedOn  string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Dataset      string
	Topology     []int
	LearningRate float64
	Seed         int64
	State        string
	Epochs       int
	FinalLoss    float64
	TestAccuracy *float64
}

type LossHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type CheckpointItem struct {
	RunID    string
	Epoch    int
	Loss     float64
	Snapshot nn.Snapshot
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		registry:   platform.NewRegistry(),
		logger:     logger,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

// Close stops every active run and releases the store.
func (c *Client) Close() error {
	stopErr := c.registry.StopAll()
	closeErr := storage.CloseIfSupported(c.store)
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}

func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Train runs one training job to completion, stop or failure and persists
// it. Cancelling ctx stops the run; what was learned so far is still saved.
func (c *Client) Train(ctx context.Context, req TrainRequest, observe Observer) (TrainSummary, error) {
	if err := c.Init(ctx); err != nil {
		return TrainSummary{}, err
	}
	req, err := normalizeTrainRequest(req)
	if err != nil {
		return TrainSummary{}, err
	}
	hidden, err := nn.ParseActivation(req.HiddenAct)
	if err != nil {
		return TrainSummary{}, err
	}
	output, err := nn.ParseActivation(req.OutputAct)
	if err != nil {
		return TrainSummary{}, err
	}
	method, err := dataset.ParseMethod(req.Normalization)
	if err != nil {
		return TrainSummary{}, err
	}

	rng := rand.New(rand.NewSource(req.Seed))
	split, err := loadSplit(req, rng)
	if err != nil {
		return TrainSummary{}, err
	}
	if len(split.Train) == 0 {
		return TrainSummary{}, fmt.Errorf("dataset %s: %w", req.Dataset, nn.ErrEmptyDataset)
	}
	if _, err := dataset.Normalize(&split, method); err != nil {
		return TrainSummary{}, err
	}

	topology := append([]int{len(split.Train[0].Features)}, req.Hidden...)
	topology = append(topology, len(split.Train[0].Target))
	network, err := nn.Build(rng, topology, hidden, output)
	if err != nil {
		return TrainSummary{}, err
	}

	runID := uuid.NewString()
	createdAt := time.Now().UTC().Format(timestampLayout)
	persistCtx := context.WithoutCancel(ctx)

	var (
		history       []float64
		checkpointErr error
	)
	hooks := trainer.Hooks{
		OnEpoch: func(epoch int, loss float64) {
			history = append(history, loss)
			if req.CheckpointEvery > 0 && epoch%req.CheckpointEvery == 0 && checkpointErr == nil {
				checkpointErr = c.saveCheckpoint(persistCtx, runID, epoch, loss, network.Snapshot())
			}
		},
	}
	o, err := trainer.Start(network, split.Train, trainer.Options{
		LearningRate: req.LearningRate,
		EpochLimit:   req.Epochs,
		Yield:        req.Yield,
		StartPaused:  req.StartPaused,
		Hooks:        hooks,
	})
	if err != nil {
		return TrainSummary{}, err
	}
	defer o.Close()
	if err := c.registry.Register(runID, o); err != nil {
		return TrainSummary{}, err
	}
	defer c.registry.Unregister(runID)
	c.logger.Printf("run=%s event=start dataset=%s topology=%v train=%d test=%d lr=%g epochs=%d seed=%d",
		runID, req.Dataset, topology, len(split.Train), len(split.Test), req.LearningRate, o.EpochLimit(), req.Seed)

	sink := func(frame monitor.Frame) error {
		if observe != nil {
			observe(frame)
		}
		return nil
	}
	pollErr := monitor.Poll(ctx, o, req.FrameInterval, sink)
	runErr := o.Stop()
	if errors.Is(runErr, trainer.ErrConcurrencyFault) {
		c.logger.Printf("run=%s event=poisoned err=%v", runID, runErr)
		return TrainSummary{RunID: runID, State: o.State().String()}, runErr
	}
	if pollErr != nil && !errors.Is(pollErr, context.Canceled) && !errors.Is(pollErr, context.DeadlineExceeded) {
		return TrainSummary{}, pollErr
	}
	if checkpointErr != nil {
		c.logger.Printf("run=%s event=checkpoint_failed err=%v", runID, checkpointErr)
	}

	snapshot, err := o.Snapshot()
	if err != nil {
		return TrainSummary{}, err
	}
	summary := TrainSummary{
		RunID:       runID,
		State:       o.State().String(),
		Seed:        req.Seed,
		Topology:    topology,
		Parameters:  snapshot.ParameterCount(),
		Epochs:      o.Epoch(),
		FinalLoss:   o.Loss(),
		LossHistory: append([]float64(nil), history...),
	}
	if observe != nil && pollErr != nil {
		if frame, err := monitor.BuildFrame(o); err == nil {
			observe(frame)
		}
	}

	evalSet, evalName := split.Test, "test"
	if len(evalSet) == 0 {
		evalSet, evalName = split.Train, "train"
	}
	evaluation, err := nn.Evaluate(snapshot, evalSet, req.Threshold)
	if err != nil {
		return TrainSummary{}, err
	}
	summary.Evaluation = &evaluation
	summary.EvaluatedOn = evalName

	runDir, err := c.persist(persistCtx, req, summary, snapshot, createdAt, method)
	if err != nil {
		return TrainSummary{}, err
	}
	summary.ArtifactsDir = runDir
	c.logger.Printf("run=%s event=finish state=%s epochs=%d loss=%.6f %s_loss=%.6f %s_accuracy=%.4f",
		runID, summary.State, summary.Epochs, summary.FinalLoss, evalName, evaluation.Loss, evalName, evaluation.Accuracy)

	if runErr != nil {
		return summary, runErr
	}
	if checkpointErr != nil {
		return summary, fmt.Errorf("checkpoint: %w", checkpointErr)
	}
	return summary, nil
}

func (c *Client) persist(ctx context.Context, req TrainRequest, summary TrainSummary, snapshot nn.Snapshot, createdAt string, method dataset.Method) (string, error) {
	run := model.Run{
		VersionedRecord: storage.CurrentVersion(),
		ID:              summary.RunID,
		CreatedAtUTC:    createdAt,
		Dataset:         req.Dataset,
		Topology:        summary.Topology,
		Hidden:          req.HiddenAct,
		Output:          req.OutputAct,
		LearningRate:    req.LearningRate,
		EpochLimit:      req.Epochs,
		Seed:            req.Seed,
		State:           summary.State,
		Epochs:          summary.Epochs,
		FinalLoss:       summary.FinalLoss,
	}
	if summary.EvaluatedOn == "test" {
		loss, accuracy := summary.Evaluation.Loss, summary.Evaluation.Accuracy
		run.TestLoss, run.TestAccuracy = &loss, &accuracy
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return "", err
	}
	if err := c.store.SaveLossHistory(ctx, summary.RunID, summary.LossHistory); err != nil {
		return "", err
	}
	if err := c.saveCheckpoint(ctx, summary.RunID, summary.Epochs, summary.FinalLoss, snapshot); err != nil {
		return "", err
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:         summary.RunID,
			Dataset:       req.Dataset,
			SplitRatio:    req.SplitRatio,
			Normalization: string(method),
			Topology:      summary.Topology,
			Hidden:        req.HiddenAct,
			Output:        req.OutputAct,
			Loss:          snapshot.Loss().String(),
			LearningRate:  req.LearningRate,
			EpochLimit:    req.Epochs,
			YieldMS:       req.Yield.Milliseconds(),
			Seed:          req.Seed,
			StartPaused:   req.StartPaused,
			CheckpointN:   req.CheckpointEvery,
			Threshold:     req.Threshold,
		},
		State:       summary.State,
		LossHistory: summary.LossHistory,
		Network:     snapshot.Record(),
		Evaluation:  summary.Evaluation,
	})
	if err != nil {
		return "", err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        run.ID,
		Dataset:      run.Dataset,
		Topology:     run.Topology,
		LearningRate: run.LearningRate,
		Seed:         run.Seed,
		State:        run.State,
		Epochs:       run.Epochs,
		FinalLoss:    run.FinalLoss,
		TestAccuracy: run.TestAccuracy,
		CreatedAtUTC: run.CreatedAtUTC,
	}); err != nil {
		return "", err
	}
	return filepath.Clean(runDir), nil
}

func (c *Client) saveCheckpoint(ctx context.Context, runID string, epoch int, loss float64, snapshot nn.Snapshot) error {
	return c.store.SaveCheckpoint(ctx, model.Checkpoint{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Epoch:           epoch,
		Loss:            loss,
		Network:         snapshot.Record(),
	})
}

func (c *Client) Pause(runID string) error {
	return c.registry.Pause(runID)
}

func (c *Client) Resume(runID string) error {
	return c.registry.Continue(runID)
}

// Stop blocks until the run's current epoch has finished.
func (c *Client) Stop(runID string) error {
	return c.registry.Stop(runID)
}

// Active lists runs this client is training right now, plus the last
// status of runs it has finished.
func (c *Client) Active() []platform.RunStatus {
	return c.registry.Statuses()
}

// Runs lists persisted runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, min(len(runs), req.Limit))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		r := runs[i]
		out = append(out, RunItem{
			RunID:        r.ID,
			CreatedAtUTC: r.CreatedAtUTC,
			Dataset:      r.Dataset,
			Topology:     append([]int(nil), r.Topology...),
			LearningRate: r.LearningRate,
			Seed:         r.Seed,
			State:        r.State,
			Epochs:       r.Epochs,
			FinalLoss:    r.FinalLoss,
			TestAccuracy: r.TestAccuracy,
		})
	}
	return out, nil
}

func (c *Client) LossHistory(ctx context.Context, req LossHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetLossHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("loss history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[len(history)-req.Limit:]
	}
	return append([]float64(nil), history...), nil
}

// Checkpoint loads the latest persisted model of a run.
func (c *Client) Checkpoint(ctx context.Context, runID string, latest bool) (CheckpointItem, error) {
	runID, err := c.resolveRunID(ctx, runID, latest)
	if err != nil {
		return CheckpointItem{}, err
	}
	checkpoint, ok, err := c.store.GetCheckpoint(ctx, runID)
	if err != nil {
		return CheckpointItem{}, err
	}
	if !ok {
		return CheckpointItem{}, fmt.Errorf("checkpoint not found for run id: %s", runID)
	}
	snapshot, err := nn.FromRecord(checkpoint.Network)
	if err != nil {
		return CheckpointItem{}, fmt.Errorf("checkpoint %s: %w", runID, err)
	}
	return CheckpointItem{RunID: runID, Epoch: checkpoint.Epoch, Loss: checkpoint.Loss, Snapshot: snapshot}, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ReadRunIndex(c.runsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, ErrNoRuns
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if !latest {
		if runID == "" {
			return "", errors.New("run id or latest is required")
		}
		return runID, nil
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", ErrNoRuns
	}
	return runs[len(runs)-1].ID, nil
}

func normalizeTrainRequest(req TrainRequest) (TrainRequest, error) {
	req.Dataset = strings.TrimSpace(req.Dataset)
	if req.Dataset == "" {
		req.Dataset = "xor"
	}
	if req.SplitRatio == 0 {
		req.SplitRatio = defaultSplitRatio
		if strings.EqualFold(req.Dataset, "xor") {
			req.SplitRatio = 1
		}
	}
	if req.Hidden == nil {
		req.Hidden = []int{4}
	}
	for _, size := range req.Hidden {
		if size <= 0 {
			return TrainRequest{}, fmt.Errorf("hidden layer sizes must be > 0 (got %v)", req.Hidden)
		}
	}
	if req.HiddenAct == "" {
		req.HiddenAct = nn.Sigmoid.String()
	}
	if req.OutputAct == "" {
		req.OutputAct = nn.Sigmoid.String()
	}
	if req.LearningRate == 0 {
		req.LearningRate = defaultLearningRate
	}
	if req.Epochs < 0 {
		return TrainRequest{}, fmt.Errorf("epochs must be >= 0 (got %d)", req.Epochs)
	}
	if req.Epochs == 0 {
		req.Epochs = trainer.DefaultEpochLimit
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if req.CheckpointEvery == 0 {
		req.CheckpointEvery = defaultCheckpointEvery
	}
	if req.FrameInterval <= 0 {
		req.FrameInterval = defaultFrameInterval
	}
	if req.Threshold == 0 {
		req.Threshold = defaultThreshold
	}
	if req.LinearExamples <= 0 {
		req.LinearExamples = defaultLinearExamples
	}
	if req.LinearDims <= 0 {
		req.LinearDims = defaultLinearDims
	}
	return req, nil
}

func loadSplit(req TrainRequest, rng *rand.Rand) (dataset.Split, error) {
	switch strings.ToLower(req.Dataset) {
	case "xor":
		return dataset.SplitExamples(dataset.XOR(), req.SplitRatio)
	case "linear":
		return dataset.SplitExamples(dataset.LinearlySeparable(rng, req.LinearExamples, req.LinearDims), req.SplitRatio)
	default:
		provider := dataset.CSVProvider{
			FeatureCount: req.FeatureCount,
			TargetCount:  1,
			SkipHeader:   req.SkipHeader,
			Rand:         rng,
		}
		return provider.Load(req.Dataset, req.SplitRatio)
	}
}
