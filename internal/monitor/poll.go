package monitor

import (
	"context"
	"time"
)

const DefaultInterval = 250 * time.Millisecond

// Poll builds a frame every interval and hands it to sink until the run
// ends, ctx is done or sink fails. A final frame is always emitted once the
// run has ended so the last state is never missed.
func Poll(ctx context.Context, src Source, interval time.Duration, sink func(Frame) error) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-src.Done():
			return emit(src, sink)
		case <-ticker.C:
			if err := emit(src, sink); err != nil {
				return err
			}
		}
	}
}

func emit(src Source, sink func(Frame) error) error {
	frame, err := BuildFrame(src)
	if err != nil {
		return err
	}
	return sink(frame)
}
