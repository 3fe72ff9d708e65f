package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/arbor"
)

// settleDelay is how long the workspace must stay quiet before a re-run.
const settleDelay = 100 * time.Millisecond

// RunWatch evaluates the model and evaluates it again whenever a model or
// scenario file changes, until ctx is done.
func RunWatch(ctx context.Context, eng *arbor.Engine, opts RunOptions, logger *slog.Logger) error {
	w := opts.out()
	events, err := eng.Watch(ctx)
	if err != nil {
		return err
	}
	logger.Info("Starting Watcher", "dir", opts.Dir, "model", opts.Model)

	for {
		// 1. Evaluate; failures are reported and wait for a fix
		if err := runOnce(ctx, eng, opts); err != nil {
			if isInterrupted(err) {
				return err
			}
			if !errors.Is(err, ErrInvalidModel) {
				logger.Error("Run failed", "err", err)
				printSystemMessage(w, "Run failed: %v", err)
			}
		}
		printSystemMessage(w, "Waiting for changes...")

		// 2. Block until something changes
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-events:
			if !ok {
				return nil
			}
			logger.Info("Change detected, re-running", "event", id)
			printSystemMessage(w, "Change detected in '%s'.", id)
		}

		// 3. Let editors finish writing
		if !settle(ctx, events, settleDelay) {
			return ctx.Err()
		}
	}
}

// settle waits until events have been quiet for d. It returns false when
// ctx is done or the event stream ends.
func settle(ctx context.Context, events <-chan string, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-events:
			if !ok {
				return false
			}
			timer.Reset(d)
		case <-timer.C:
			return true
		}
	}
}
