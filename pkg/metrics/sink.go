// Package metrics emits best-effort progression counters to an external
// analytics backend. Failures are logged and never reach the caller's
// transaction.
package metrics

import (
	"context"
	"time"

	"github.com/hackquest/hackquest/pkg/logging"
)

// StageCompleted is the counter incremented once per completed quest
const StageCompleted = "hackquest.stage_completed"

// DefaultTimeout bounds a single metrics call
const DefaultTimeout = 5 * time.Second

// Sink records counters
type Sink interface {
	RecordCount(ctx context.Context, name string, tags []string, count int, ts time.Time) error
}

// Nop discards everything
type Nop struct{}

// RecordCount implements Sink
func (Nop) RecordCount(ctx context.Context, name string, tags []string, count int, ts time.Time) error {
	return nil
}

// StageTag renders the tag attached to StageCompleted
func StageTag(tag string) string {
	return "stage:" + tag
}

// NotifyStageCompleted records one StageCompleted count for tag under its
// own timeout. It reports whether the sink accepted the count.
func NotifyStageCompleted(ctx context.Context, sink Sink, tag string, timeout time.Duration) bool {
	if sink == nil {
		return false
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Detached from the caller's deadline; the transaction has already committed
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := sink.RecordCount(ctx, StageCompleted, []string{StageTag(tag)}, 1, time.Now()); err != nil {
		logging.App.Warn("Failed to record stage metric", "tag", tag, "error", err)
		return false
	}
	logging.App.Debug("Recorded stage metric", "tag", tag)
	return true
}
