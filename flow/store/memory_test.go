package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dagflow-io/dagflow/flow"
)

func terminalExecution(t *testing.T, workflowID string) *flow.Execution {
	t.Helper()
	exec := flow.NewExecution(workflowID, map[string]any{"k": "v"})
	if err := exec.Start(); err != nil {
		t.Fatal(err)
	}
	if err := exec.Complete(); err != nil {
		t.Fatal(err)
	}
	return exec
}

func TestMemStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	exec := terminalExecution(t, "wf")

	if err := st.SaveExecution(ctx, exec); err != nil {
		t.Fatalf("SaveExecution: %v", err)
	}
	got, err := st.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.ID != exec.ID || got.Status != flow.StatusCompleted {
		t.Errorf("got = %+v", got)
	}
	if got.Context["k"] != "v" {
		t.Errorf("context lost: %v", got.Context)
	}

	// Reads are isolated copies.
	got.Context["k"] = "mutated"
	again, _ := st.GetExecution(ctx, exec.ID)
	if again.Context["k"] != "v" {
		t.Error("store returned aliased state")
	}
}

func TestMemStoreGetUnknown(t *testing.T) {
	st := NewMemStore()
	if _, err := st.GetExecution(context.Background(), "nope"); err != flow.ErrExecutionNotFound {
		t.Errorf("err = %v, want ErrExecutionNotFound", err)
	}
}

func TestMemStoreExecutionExpiry(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	now := time.Now()
	st.now = func() time.Time { return now }

	exec := terminalExecution(t, "wf")
	if err := st.SaveExecution(ctx, exec); err != nil {
		t.Fatal(err)
	}

	now = now.Add(flow.ExecutionTTL - time.Second)
	if _, err := st.GetExecution(ctx, exec.ID); err != nil {
		t.Errorf("expired early: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := st.GetExecution(ctx, exec.ID); err != flow.ErrExecutionNotFound {
		t.Errorf("err = %v, want ErrExecutionNotFound after TTL", err)
	}
}

func TestMemStoreRunningSet(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()

	_ = st.AddToRunning(ctx, "e1")
	_ = st.AddToRunning(ctx, "e2")
	_ = st.AddToRunning(ctx, "e1") // idempotent

	ids, err := st.ListRunning(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("ListRunning = %v, %v", ids, err)
	}

	_ = st.RemoveFromRunning(ctx, "e1")
	_ = st.RemoveFromRunning(ctx, "ghost") // no-op
	ids, _ = st.ListRunning(ctx)
	if len(ids) != 1 || ids[0] != "e2" {
		t.Errorf("ListRunning = %v", ids)
	}
}

func TestMemStoreHistoryOrderAndTrim(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()

	var last string
	for i := 0; i < flow.HistoryLimit+10; i++ {
		exec := terminalExecution(t, "wf")
		if err := st.AppendHistory(ctx, "wf", exec); err != nil {
			t.Fatal(err)
		}
		last = exec.ID
	}

	history, err := st.ListHistory(ctx, "wf")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != flow.HistoryLimit {
		t.Fatalf("history length = %d, want %d", len(history), flow.HistoryLimit)
	}
	// Newest first.
	if history[0].ID != last {
		t.Errorf("history[0] = %s, want %s", history[0].ID, last)
	}
}

func TestMemStoreHistoryIsolatedByWorkflow(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	_ = st.AppendHistory(ctx, "wf-a", terminalExecution(t, "wf-a"))

	if h, _ := st.ListHistory(ctx, "wf-b"); len(h) != 0 {
		t.Errorf("cross-workflow history leak: %v", h)
	}
}

func TestMemStoreLogs(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()

	for i := 0; i < 3; i++ {
		entry := flow.Entry{
			Timestamp: time.Now(),
			Level:     "info",
			Message:   fmt.Sprintf("line %d", i),
		}
		if err := st.AppendLog(ctx, "2026-08-24", entry); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := st.ListLogs(ctx, "2026-08-24")
	if err != nil || len(entries) != 3 {
		t.Fatalf("ListLogs = %v, %v", entries, err)
	}
	if entries[0].Message != "line 0" || entries[2].Message != "line 2" {
		t.Errorf("order lost: %v", entries)
	}
	if other, _ := st.ListLogs(ctx, "2026-08-25"); len(other) != 0 {
		t.Errorf("cross-day leak: %v", other)
	}
}

func TestMemStoreLogExpiry(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	now := time.Now()
	st.now = func() time.Time { return now }

	_ = st.AppendLog(ctx, "day", flow.Entry{Timestamp: now, Level: "info", Message: "old"})
	now = now.Add(flow.LogTTL + time.Second)
	if entries, _ := st.ListLogs(ctx, "day"); len(entries) != 0 {
		t.Errorf("expired logs returned: %v", entries)
	}
}
