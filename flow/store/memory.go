// Package store provides StateStore backends: an in-memory store for tests
// and single-process use, a Redis store for shared deployments, and a SQLite
// store for durable single-node persistence.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dagflow-io/dagflow/flow"
)

type memRecord struct {
	data      []byte
	expiresAt time.Time
}

type memList struct {
	items     [][]byte
	expiresAt time.Time
}

// MemStore is an in-memory StateStore with the same TTL semantics as the
// Redis backend. Records are stored as JSON so readers always get an
// isolated copy, never a pointer into live executor state.
//
// Expiry is lazy: expired entries are dropped when read or overwritten.
type MemStore struct {
	mu         sync.RWMutex
	executions map[string]memRecord
	running    map[string]struct{}
	history    map[string]memList
	logs       map[string]memList

	// now is replaceable in tests to exercise expiry.
	now func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		executions: make(map[string]memRecord),
		running:    make(map[string]struct{}),
		history:    make(map[string]memList),
		logs:       make(map[string]memList),
		now:        time.Now,
	}
}

func (m *MemStore) SaveExecution(_ context.Context, exec *flow.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[exec.ID] = memRecord{data: data, expiresAt: m.now().Add(flow.ExecutionTTL)}
	return nil
}

func (m *MemStore) GetExecution(_ context.Context, id string) (*flow.Execution, error) {
	m.mu.RLock()
	rec, ok := m.executions[id]
	m.mu.RUnlock()
	if !ok || m.now().After(rec.expiresAt) {
		return nil, flow.ErrExecutionNotFound
	}
	var exec flow.Execution
	if err := json.Unmarshal(rec.data, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

func (m *MemStore) AddToRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[id] = struct{}{}
	return nil
}

func (m *MemStore) RemoveFromRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, id)
	return nil
}

func (m *MemStore) ListRunning(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemStore) AppendHistory(_ context.Context, workflowID string, exec *flow.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.history[workflowID]
	if m.now().After(list.expiresAt) {
		list.items = nil
	}
	// Newest first, capped at HistoryLimit.
	list.items = append([][]byte{data}, list.items...)
	if len(list.items) > flow.HistoryLimit {
		list.items = list.items[:flow.HistoryLimit]
	}
	list.expiresAt = m.now().Add(flow.HistoryTTL)
	m.history[workflowID] = list
	return nil
}

func (m *MemStore) ListHistory(_ context.Context, workflowID string) ([]*flow.Execution, error) {
	m.mu.RLock()
	list, ok := m.history[workflowID]
	m.mu.RUnlock()
	if !ok || m.now().After(list.expiresAt) {
		return nil, nil
	}
	execs := make([]*flow.Execution, 0, len(list.items))
	for _, data := range list.items {
		var exec flow.Execution
		if err := json.Unmarshal(data, &exec); err != nil {
			return nil, err
		}
		execs = append(execs, &exec)
	}
	return execs, nil
}

func (m *MemStore) AppendLog(_ context.Context, day string, entry flow.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.logs[day]
	if m.now().After(list.expiresAt) {
		list.items = nil
	}
	list.items = append(list.items, data)
	list.expiresAt = m.now().Add(flow.LogTTL)
	m.logs[day] = list
	return nil
}

// ListLogs returns the log entries recorded for a day, oldest first. Not
// part of the StateStore contract; exposed for inspection and tests.
func (m *MemStore) ListLogs(_ context.Context, day string) ([]flow.Entry, error) {
	m.mu.RLock()
	list, ok := m.logs[day]
	m.mu.RUnlock()
	if !ok || m.now().After(list.expiresAt) {
		return nil, nil
	}
	entries := make([]flow.Entry, 0, len(list.items))
	for _, data := range list.items {
		var e flow.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
