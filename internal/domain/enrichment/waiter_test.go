package enrichment

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garden-fi/assistant-fulfillment/internal/domain/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWaitReturnsOnTerminalEvent(t *testing.T) {
	var sinceVersions []int64
	statuses := []JobStatus{
		{Version: 3},
		{Version: 7, Events: []Event{{Type: "AccountAdded"}}},
		{Version: 9, Events: []Event{{Type: EventTaskEnded}}},
	}

	calls := 0
	poll := func(ctx context.Context, taskID string, sinceVersion int64) (JobStatus, error) {
		sinceVersions = append(sinceVersions, sinceVersion)
		status := statuses[calls]
		calls++
		return status, nil
	}

	waiter := NewWaiter(10, testLogger())
	status, err := waiter.Wait(context.Background(), "user-1", "task-1", poll)
	require.NoError(t, err)

	assert.Equal(t, 3, calls, "waiter must stop on the terminal poll")
	assert.Equal(t, []int64{0, 3, 7}, sinceVersions, "each poll uses the previous version")
	assert.Equal(t, int64(9), status.Version)
}

func TestWaitStopsOnAllBalancesUpdated(t *testing.T) {
	poll := func(ctx context.Context, taskID string, sinceVersion int64) (JobStatus, error) {
		return JobStatus{Version: 1, Events: []Event{{Type: EventAllBalancesUpdated}}}, nil
	}

	waiter := NewWaiter(10, testLogger())
	status, err := waiter.Wait(context.Background(), "user-1", "task-1", poll)
	require.NoError(t, err)
	assert.True(t, status.Terminal())
}

func TestWaitTimesOutAfterBound(t *testing.T) {
	calls := 0
	poll := func(ctx context.Context, taskID string, sinceVersion int64) (JobStatus, error) {
		calls++
		return JobStatus{Version: int64(calls)}, nil
	}

	waiter := NewWaiter(5, testLogger())
	_, err := waiter.Wait(context.Background(), "user-1", "task-1", poll)

	assert.ErrorIs(t, err, errors.AppError{Code: "POLL_TIMEOUT"})
	assert.Equal(t, 5, calls)
}

func TestWaitSurfacesPollFailure(t *testing.T) {
	backendErr := errors.NewBackendUnavailableError("task poll", 503, nil, "upstream down")
	poll := func(ctx context.Context, taskID string, sinceVersion int64) (JobStatus, error) {
		return JobStatus{}, backendErr
	}

	waiter := NewWaiter(5, testLogger())
	_, err := waiter.Wait(context.Background(), "user-1", "task-1", poll)

	assert.ErrorIs(t, err, errors.AppError{Code: "BACKEND_UNAVAILABLE"})
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	poll := func(ctx context.Context, taskID string, sinceVersion int64) (JobStatus, error) {
		calls++
		return JobStatus{}, nil
	}

	waiter := NewWaiter(5, testLogger())
	_, err := waiter.Wait(ctx, "user-1", "task-1", poll)

	assert.ErrorIs(t, err, errors.AppError{Code: "POLL_TIMEOUT"})
	assert.Zero(t, calls, "no poll should be issued after cancellation")
}

func TestTerminal(t *testing.T) {
	assert.False(t, JobStatus{}.Terminal())
	assert.False(t, JobStatus{Events: []Event{{Type: "AccountAdded"}}}.Terminal())
	assert.True(t, JobStatus{Events: []Event{{Type: "AccountAdded"}, {Type: EventTaskEnded}}}.Terminal())
	assert.True(t, JobStatus{Events: []Event{{Type: EventAllBalancesUpdated}}}.Terminal())
}
