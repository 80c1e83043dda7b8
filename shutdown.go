package streamplayer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// teardown coordinates the end of a player's goroutine.
//
// begin is idempotent: the first caller closes closing and cancels the
// player context (aborting any pipeline wait in progress); the goroutine
// observes closing, tears the pipeline down and closes done.
type teardown struct {
	once    sync.Once
	cancel  context.CancelFunc
	closing chan struct{}
	done    chan struct{}
}

func newTeardown(cancel context.CancelFunc) *teardown {
	return &teardown{
		cancel:  cancel,
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// begin starts the teardown and reports whether this call started it.
func (t *teardown) begin() bool {
	started := false
	t.once.Do(func() {
		close(t.closing)
		t.cancel()
		started = true
	})
	return started
}

// isClosing reports whether begin was called.
func (t *teardown) isClosing() bool {
	select {
	case <-t.closing:
		return true
	default:
		return false
	}
}

// wait blocks until the goroutine finished or ctx ends, logging once when
// the teardown takes longer than warnAfter.
func (t *teardown) wait(ctx context.Context, warnAfter time.Duration, log *slog.Logger) error {
	start := time.Now()
	warn := time.NewTimer(warnAfter)
	defer warn.Stop()

	warnC := warn.C
	for {
		select {
		case <-t.done:
			return nil
		case <-warnC:
			warnC = nil
			log.Warn("stream-player: teardown exceeds warning threshold, still waiting",
				"threshold", warnAfter,
				"elapsed", time.Since(start),
			)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
