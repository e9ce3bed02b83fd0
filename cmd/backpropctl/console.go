package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"backprop/internal/monitor"
	"backprop/internal/platform"
	"backprop/internal/stats"
	"backprop/pkg/backprop"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// progressPrinter renders frames as key=value lines. On a terminal it
// rewrites a single line in place.
type progressPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	tty     bool
	written bool
}

func newProgressPrinter(out io.Writer, tty bool) *progressPrinter {
	return &progressPrinter{out: out, tty: tty}
}

func (p *progressPrinter) Frame(frame monitor.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := formatFrame(frame)
	if p.tty {
		fmt.Fprintf(p.out, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(p.out, line)
	}
	p.written = true
}

// Done ends the in-place line so later output starts on a fresh one.
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty && p.written {
		fmt.Fprintln(p.out)
	}
}

func formatFrame(frame monitor.Frame) string {
	norms := make([]string, 0, len(frame.Layers))
	for _, layer := range frame.Layers {
		norms = append(norms, fmt.Sprintf("%.3f", layer.Norm))
	}
	return fmt.Sprintf("epoch=%s/%s progress=%.0f%% loss=%.6f state=%s weight_norms=[%s]",
		humanize.Comma(int64(frame.Epoch)),
		humanize.Comma(int64(frame.EpochLimit)),
		frame.Progress()*100,
		frame.Loss,
		frame.State,
		strings.Join(norms, " "),
	)
}

func formatSummary(s backprop.TrainSummary) string {
	line := fmt.Sprintf("run_id=%s state=%s epochs=%s final_loss=%.6f seed=%d topology=%v params=%s",
		s.RunID, s.State, humanize.Comma(int64(s.Epochs)), s.FinalLoss, s.Seed, s.Topology, humanize.Comma(int64(s.Parameters)))
	if s.Evaluation != nil {
		line += fmt.Sprintf(" %s_loss=%.6f %s_accuracy=%.4f", s.EvaluatedOn, s.Evaluation.Loss, s.EvaluatedOn, s.Evaluation.Accuracy)
	}
	return line + " artifacts=" + s.ArtifactsDir
}

func formatRunEntry(e stats.RunIndexEntry, now time.Time) string {
	age := e.CreatedAtUTC
	if created, err := time.Parse(time.RFC3339Nano, e.CreatedAtUTC); err == nil {
		age = humanize.RelTime(created, now, "ago", "from now")
	}
	accuracy := "n/a"
	if e.TestAccuracy != nil {
		accuracy = fmt.Sprintf("%.4f", *e.TestAccuracy)
	}
	return fmt.Sprintf("run_id=%s created=%q dataset=%s topology=%v lr=%g seed=%d state=%s epochs=%s final_loss=%.6f test_accuracy=%s",
		e.RunID, age, e.Dataset, e.Topology, e.LearningRate, e.Seed, e.State, humanize.Comma(int64(e.Epochs)), e.FinalLoss, accuracy)
}

// runController is the part of the client the interactive loop drives.
type runController interface {
	Active() []platform.RunStatus
	Pause(runID string) error
	Resume(runID string) error
	Stop(runID string) error
}

// controlLoop reads pause, resume and stop commands from in and applies them
// to the single active run. It returns when in is exhausted, ctx is done or
// a stop was delivered.
func controlLoop(ctx context.Context, in io.Reader, ctl runController, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		cmd := strings.ToLower(strings.TrimSpace(line))
		if cmd == "" {
			continue
		}
		runID, ok := activeRunID(ctl)
		if !ok {
			fmt.Fprintln(out, "no active run")
			continue
		}
		var err error
		switch cmd {
		case "pause", "p":
			err = ctl.Pause(runID)
		case "resume", "continue", "r", "c":
			err = ctl.Resume(runID)
		case "stop", "s", "q", "quit":
			if err := ctl.Stop(runID); err != nil {
				fmt.Fprintf(out, "\nstop run_id=%s err=%v\n", runID, err)
			}
			return nil
		default:
			fmt.Fprintf(out, "\nunknown command %q (pause | resume | stop)\n", cmd)
			continue
		}
		if err != nil {
			fmt.Fprintf(out, "\n%s run_id=%s err=%v\n", cmd, runID, err)
		}
	}
}

func activeRunID(ctl runController) (string, bool) {
	for _, status := range ctl.Active() {
		if status.Active {
			return status.RunID, true
		}
	}
	return "", false
}
