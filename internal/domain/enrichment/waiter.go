package enrichment

import (
	"context"
	"log/slog"

	"github.com/garden-fi/assistant-fulfillment/internal/domain/errors"
)

// PollFunc issues one status query for a task, returning events recorded
// after sinceVersion.
type PollFunc func(ctx context.Context, taskID string, sinceVersion int64) (JobStatus, error)

// Waiter blocks until a background fetch task reports a terminal event.
// The iteration bound guards against stuck backend jobs; the caller's
// context deadline applies on top of it.
type Waiter struct {
	maxAttempts int
	log         *slog.Logger
}

// NewWaiter creates a waiter that gives up after maxAttempts polls.
func NewWaiter(maxAttempts int, log *slog.Logger) *Waiter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Waiter{
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Wait polls the task until a terminal event appears, threading each
// returned version into the next poll as its sinceVersion. Poll failures
// are surfaced as-is; exhausting the bound or the context yields a
// POLL_TIMEOUT error.
func (w *Waiter) Wait(ctx context.Context, userID, taskID string, poll PollFunc) (JobStatus, error) {
	status := JobStatus{}
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return JobStatus{}, errors.NewPollTimeoutError(taskID, attempt-1, err)
		}

		next, err := poll(ctx, taskID, status.Version)
		if err != nil {
			return JobStatus{}, err
		}
		status = next

		w.log.Info("polled enrichment task",
			"userId", userID,
			"taskId", taskID,
			"version", status.Version,
			"attempt", attempt)

		if status.Terminal() {
			return status, nil
		}
	}
	return JobStatus{}, errors.NewPollTimeoutError(taskID, w.maxAttempts, nil)
}
