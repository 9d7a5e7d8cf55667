package flow

import (
	"context"
	"time"
)

// Retention applied by StateStore implementations. The TTL scheme is
// deliberate: persisted state is best-effort observability, not a durable
// recovery log.
const (
	// ExecutionTTL bounds how long a live execution record is retained.
	ExecutionTTL = time.Hour

	// HistoryTTL bounds the per-workflow history list.
	HistoryTTL = 7 * 24 * time.Hour

	// HistoryLimit caps how many executions a workflow's history keeps.
	HistoryLimit = 100

	// LogTTL bounds the per-day log lists.
	LogTTL = 30 * 24 * time.Hour
)

// StateStore is the persistence collaborator for executions, history, and
// logs. All operations are best-effort and idempotent (upserts); when no
// store is configured the executor uses NopStore and remains fully
// functional.
type StateStore interface {
	// SaveExecution upserts the execution record, keyed by id.
	SaveExecution(ctx context.Context, exec *Execution) error

	// GetExecution loads an execution by id. Returns ErrExecutionNotFound
	// when the id is unknown or expired.
	GetExecution(ctx context.Context, id string) (*Execution, error)

	// AddToRunning adds an execution id to the currently-running set.
	AddToRunning(ctx context.Context, id string) error

	// RemoveFromRunning removes an execution id from the running set.
	RemoveFromRunning(ctx context.Context, id string) error

	// ListRunning snapshots the running execution ids.
	ListRunning(ctx context.Context) ([]string, error)

	// AppendHistory prepends an execution to the workflow's history list,
	// trimming it to the most recent HistoryLimit entries.
	AppendHistory(ctx context.Context, workflowID string, exec *Execution) error

	// ListHistory returns up to HistoryLimit executions for a workflow in
	// reverse chronological order (newest first).
	ListHistory(ctx context.Context, workflowID string) ([]*Execution, error)

	// AppendLog appends a log entry to the per-day list. day is formatted
	// YYYY-MM-DD.
	AppendLog(ctx context.Context, day string, entry Entry) error
}

// NopStore is the StateStore used when persistence is disabled. Every write
// is a no-op and every read returns empty/absent.
type NopStore struct{}

// NewNopStore returns the disabled persistence backend.
func NewNopStore() *NopStore { return &NopStore{} }

func (*NopStore) SaveExecution(context.Context, *Execution) error { return nil }

func (*NopStore) GetExecution(context.Context, string) (*Execution, error) {
	return nil, ErrExecutionNotFound
}

func (*NopStore) AddToRunning(context.Context, string) error      { return nil }
func (*NopStore) RemoveFromRunning(context.Context, string) error { return nil }

func (*NopStore) ListRunning(context.Context) ([]string, error) { return nil, nil }

func (*NopStore) AppendHistory(context.Context, string, *Execution) error { return nil }

func (*NopStore) ListHistory(context.Context, string) ([]*Execution, error) { return nil, nil }

func (*NopStore) AppendLog(context.Context, string, Entry) error { return nil }

// Cancel requests cancellation of a running execution through the store:
// load, transition running → failed with the reserved Cancelled error,
// save. The executor does not poll mid-level; it honors the cancellation at
// the next level boundary, so already-dispatched work finishes first.
//
// Returns ErrExecutionNotFound if the id is unknown and ErrNotRunning if
// the execution already reached a terminal state.
func Cancel(ctx context.Context, st StateStore, executionID string) error {
	exec, err := st.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	if exec.CurrentStatus() != StatusRunning {
		return ErrNotRunning
	}
	if err := exec.Fail(Cancelled); err != nil {
		return err
	}
	if err := st.SaveExecution(ctx, exec); err != nil {
		return err
	}
	return st.RemoveFromRunning(ctx, executionID)
}
