package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dagflow-io/dagflow/flow"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	exec := terminalExecution(t, "wf")

	if err := st.SaveExecution(ctx, exec); err != nil {
		t.Fatalf("SaveExecution: %v", err)
	}
	got, err := st.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.ID != exec.ID || got.Status != flow.StatusCompleted || got.Context["k"] != "v" {
		t.Errorf("got = %+v", got)
	}

	// Upsert replaces.
	exec2 := flow.NewExecution("wf", nil)
	exec2.ID = exec.ID
	_ = exec2.Start()
	_ = exec2.Fail("boom")
	if err := st.SaveExecution(ctx, exec2); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetExecution(ctx, exec.ID)
	if got.Status != flow.StatusFailed || got.Error != "boom" {
		t.Errorf("upsert lost: %+v", got)
	}
}

func TestSQLiteStoreGetUnknown(t *testing.T) {
	st := newTestSQLite(t)
	if _, err := st.GetExecution(context.Background(), "nope"); err != flow.ErrExecutionNotFound {
		t.Errorf("err = %v, want ErrExecutionNotFound", err)
	}
}

func TestSQLiteStoreExecutionExpiry(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)
	now := time.Now()
	st.now = func() time.Time { return now }

	exec := terminalExecution(t, "wf")
	if err := st.SaveExecution(ctx, exec); err != nil {
		t.Fatal(err)
	}
	now = now.Add(flow.ExecutionTTL + time.Minute)
	if _, err := st.GetExecution(ctx, exec.ID); err != flow.ErrExecutionNotFound {
		t.Errorf("err = %v, want ErrExecutionNotFound after TTL", err)
	}
}

func TestSQLiteStoreRunningSet(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	_ = st.AddToRunning(ctx, "e1")
	_ = st.AddToRunning(ctx, "e1")
	_ = st.AddToRunning(ctx, "e2")

	ids, err := st.ListRunning(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("ListRunning = %v, %v", ids, err)
	}
	_ = st.RemoveFromRunning(ctx, "e2")
	ids, _ = st.ListRunning(ctx)
	if len(ids) != 1 || ids[0] != "e1" {
		t.Errorf("ListRunning = %v", ids)
	}
}

func TestSQLiteStoreHistoryOrderAndTrim(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	var last string
	for i := 0; i < flow.HistoryLimit+5; i++ {
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
	if history[0].ID != last {
		t.Errorf("history[0] = %s, want newest %s", history[0].ID, last)
	}
}

func TestSQLiteStoreLogs(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLite(t)

	for _, msg := range []string{"one", "two"} {
		entry := flow.Entry{Timestamp: time.Now(), Level: "info", Message: msg}
		if err := st.AppendLog(ctx, "2026-08-24", entry); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := st.ListLogs(ctx, "2026-08-24")
	if err != nil || len(entries) != 2 {
		t.Fatalf("ListLogs = %v, %v", entries, err)
	}
	if entries[0].Message != "one" || entries[1].Message != "two" {
		t.Errorf("order lost: %v", entries)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	st, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	exec := terminalExecution(t, "wf")
	if err := st.SaveExecution(ctx, exec); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st2.Close() }()
	got, err := st2.GetExecution(ctx, exec.ID)
	if err != nil || got.ID != exec.ID {
		t.Errorf("reopen lost record: %v, %v", got, err)
	}
}
