package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"backprop/internal/stats"
	"backprop/internal/storage"
	"backprop/pkg/backprop"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"
	dbPathFlag = "backprop.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "train":
		return runTrain(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "loss":
		return runLoss(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "info":
		return runInfo(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func newClient(storeKind, dbPath string) (*backprop.Client, error) {
	return backprop.New(backprop.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", dbPathFlag, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional training config JSON path")
	datasetName := fs.String("dataset", "xor", "dataset: xor|linear|<csv path>")
	features := fs.Int("features", 0, "CSV feature columns (0 infers from the first row, spambase uses 57)")
	skipHeader := fs.Bool("skip-header", false, "skip the first CSV row")
	split := fs.Float64("split", 0, "training share of the examples in [0,1] (0 uses 1 for xor, 0.8 otherwise)")
	normalize := fs.String("normalize", "none", "feature normalization: none|max|zscore")
	hidden := fs.String("hidden", "4", "comma separated hidden layer sizes")
	hiddenAct := fs.String("hidden-act", "sigmoid", "hidden activation: relu|sigmoid")
	outputAct := fs.String("output-act", "sigmoid", "output activation: relu|sigmoid")
	learningRate := fs.Float64("lr", 0.1, "learning rate")
	epochs := fs.Int("epochs", 100, "epoch limit")
	yieldMS := fs.Int("yield-ms", 1, "pause between epochs in milliseconds (0 disables it)")
	seed := fs.Int64("seed", 1, "rng seed (0 picks one from the clock)")
	startPaused := fs.Bool("start-paused", false, "start paused; type resume to begin")
	checkpointEvery := fs.Int("checkpoint-every", 10, "persist a checkpoint every N epochs (negative keeps only the final one)")
	threshold := fs.Float64("threshold", 0.5, "classification threshold for evaluation")
	frameMS := fs.Int("frame-ms", 200, "progress refresh interval in milliseconds")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", dbPathFlag, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	hiddenSizes, err := parseHidden(*hidden)
	if err != nil {
		return err
	}
	req, err := loadOrDefaultTrainRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = backprop.TrainRequest{
			Dataset:         *datasetName,
			FeatureCount:    *features,
			SkipHeader:      *skipHeader,
			SplitRatio:      *split,
			Normalization:   *normalize,
			Hidden:          hiddenSizes,
			HiddenAct:       *hiddenAct,
			OutputAct:       *outputAct,
			LearningRate:    *learningRate,
			Epochs:          *epochs,
			Yield:           time.Duration(*yieldMS) * time.Millisecond,
			Seed:            *seed,
			StartPaused:     *startPaused,
			CheckpointEvery: *checkpointEvery,
			Threshold:       *threshold,
			FrameInterval:   time.Duration(*frameMS) * time.Millisecond,
		}
	} else {
		if err := overrideFromFlags(&req, setFlags, map[string]any{
			"dataset":          *datasetName,
			"features":         *features,
			"skip-header":      *skipHeader,
			"split":            *split,
			"normalize":        *normalize,
			"hidden":           hiddenSizes,
			"hidden-act":       *hiddenAct,
			"output-act":       *outputAct,
			"lr":               *learningRate,
			"epochs":           *epochs,
			"yield-ms":         *yieldMS,
			"seed":             *seed,
			"start-paused":     *startPaused,
			"checkpoint-every": *checkpointEvery,
			"threshold":        *threshold,
			"frame-ms":         *frameMS,
		}); err != nil {
			return err
		}
	}
	if req.Yield == 0 {
		// The client treats zero as its default pause; the flag means none.
		req.Yield = -1
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	tty := isTerminal(os.Stdout)
	if isTerminal(os.Stdin) {
		go func() {
			_ = controlLoop(ctx, os.Stdin, client, os.Stderr)
		}()
		fmt.Fprintln(os.Stderr, "commands: pause | resume | stop")
	}
	progress := newProgressPrinter(os.Stdout, tty)
	summary, err := client.Train(ctx, req, progress.Frame)
	progress.Done()
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Println(formatSummary(summary))
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ReadRunIndex(runsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	now := time.Now()
	for _, e := range entries {
		fmt.Println(formatRunEntry(e, now))
	}
	return nil
}

func runLoss(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("loss", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	window := fs.Int("window", 1, "average the history over windows of N epochs")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", dbPathFlag, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the loss plot as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("loss requires --run-id or --latest")
	}
	if *latest {
		entries, err := stats.ReadRunIndex(runsDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return backprop.ErrNoRuns
		}
		*runID = entries[0].RunID
	}

	history, err := lossHistory(ctx, *storeKind, *dbPath, *runID)
	if err != nil {
		return err
	}
	points := stats.BuildLossPlot(history, *window)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"run_id":  *runID,
			"summary": stats.SummarizeLoss(history),
			"points":  points,
		})
	}
	for _, p := range points {
		fmt.Printf("epoch=%d loss=%.6f\n", p.Epoch, p.Value)
	}
	s := stats.SummarizeLoss(history)
	fmt.Printf("run_id=%s epochs=%d initial=%.6f final=%.6f best=%.6f best_epoch=%d\n",
		*runID, s.Epochs, s.Initial, s.Final, s.Best, s.BestEpoch)
	return nil
}

// lossHistory prefers the store and falls back to the run's artifacts, which
// outlive the in-memory store between invocations.
func lossHistory(ctx context.Context, storeKind, dbPath, runID string) ([]float64, error) {
	client, err := newClient(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = client.Close()
	}()
	history, err := client.LossHistory(ctx, backprop.LossHistoryRequest{RunID: runID})
	if err == nil {
		return history, nil
	}
	series, ok, readErr := stats.ReadLossSeries(runsDir, runID)
	if readErr != nil {
		return nil, readErr
	}
	if !ok {
		return nil, err
	}
	return series, nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}

	client, err := newClient("memory", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	exported, err := client.Export(ctx, backprop.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runShow(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run")
	jsonOut := fs.Bool("json", false, "emit the run detail as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("show requires --run-id or --latest")
	}
	if *latest {
		entries, err := stats.ReadRunIndex(runsDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return backprop.ErrNoRuns
		}
		*runID = entries[0].RunID
	}

	detail, err := loadRunDetail(runsDir, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	}
	for _, line := range detail.Lines() {
		fmt.Println(line)
	}
	return nil
}

func runInfo(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit host info as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	info := collectHostInfo()
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	for _, line := range info.Lines() {
		fmt.Println(line)
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: backpropctl <init|train|runs|loss|export|show|info> [flags]", msg)
}
