package flow

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is an execution's position in its state machine.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TimeFormat is the wall-clock serialization format for execution and log
// timestamps: microsecond precision, no timezone.
const TimeFormat = "2006-01-02 15:04:05.000000"

// Execution is the observable state of a single workflow run.
//
// State machine:
//
//	pending ──Start──▶ running ──Complete──▶ completed (terminal)
//	   │                  │
//	   │                  └──Fail(error)──▶ failed (terminal)
//	   └──Fail(error)──▶ failed (validation rejects before start)
//
// Terminal states are sinks. Cancellation is a Fail with the reserved
// Cancelled error string, applied through the StateStore (see Cancel).
type Execution struct {
	mu sync.Mutex

	ID         string
	WorkflowID string
	Status     Status
	Error      string

	// Context is the snapshot of shared run data, updated as nodes complete.
	Context map[string]any

	// Logs groups node-emitted log lines by node id.
	Logs map[string][]NodeLog

	StartTime time.Time
	EndTime   time.Time
}

// NewExecution creates a pending execution with a generated unique id.
func NewExecution(workflowID string, initial map[string]any) *Execution {
	if initial == nil {
		initial = make(map[string]any)
	}
	return &Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     StatusPending,
		Context:    initial,
		Logs:       make(map[string][]NodeLog),
	}
}

// Start transitions pending → running and stamps the start time.
func (e *Execution) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != StatusPending {
		return &ValidationError{Errors: []string{"cannot start execution in state " + string(e.Status)}}
	}
	e.Status = StatusRunning
	e.StartTime = time.Now()
	return nil
}

// Complete transitions running → completed and stamps the end time.
func (e *Execution) Complete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != StatusRunning {
		return &ValidationError{Errors: []string{"cannot complete execution in state " + string(e.Status)}}
	}
	e.Status = StatusCompleted
	e.EndTime = time.Now()
	return nil
}

// Fail transitions pending or running → failed with the given error
// message. Terminal states reject the transition.
func (e *Execution) Fail(message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != StatusPending && e.Status != StatusRunning {
		return &ValidationError{Errors: []string{"cannot fail execution in state " + string(e.Status)}}
	}
	e.Status = StatusFailed
	e.Error = message
	e.EndTime = time.Now()
	return nil
}

// Duration is EndTime − StartTime when both are set, zero otherwise.
func (e *Execution) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// CurrentStatus returns the status under the lock.
func (e *Execution) CurrentStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Status
}

// AppendNodeLogs merges node-emitted log lines into the per-node group.
func (e *Execution) AppendNodeLogs(nodeID string, logs []NodeLog) {
	if len(logs) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Logs == nil {
		e.Logs = make(map[string][]NodeLog)
	}
	e.Logs[nodeID] = append(e.Logs[nodeID], logs...)
}

// SetContext replaces the execution's context snapshot.
func (e *Execution) SetContext(data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Context = data
}

// executionJSON is the wire form of an Execution. Times are formatted with
// TimeFormat; duration is reported in seconds.
type executionJSON struct {
	ID         string               `json:"id"`
	WorkflowID string               `json:"workflowId"`
	Status     Status               `json:"status"`
	Error      string               `json:"error,omitempty"`
	Context    map[string]any       `json:"context"`
	Logs       map[string][]NodeLog `json:"logs"`
	StartTime  string               `json:"startTime,omitempty"`
	EndTime    string               `json:"endTime,omitempty"`
	Duration   float64              `json:"duration"`
}

// MarshalJSON serializes the execution in the canonical observed format.
func (e *Execution) MarshalJSON() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := executionJSON{
		ID:         e.ID,
		WorkflowID: e.WorkflowID,
		Status:     e.Status,
		Error:      e.Error,
		Context:    e.Context,
		Logs:       e.Logs,
	}
	if !e.StartTime.IsZero() {
		out.StartTime = e.StartTime.Format(TimeFormat)
	}
	if !e.EndTime.IsZero() {
		out.EndTime = e.EndTime.Format(TimeFormat)
	}
	if !e.StartTime.IsZero() && !e.EndTime.IsZero() {
		out.Duration = e.EndTime.Sub(e.StartTime).Seconds()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores an execution from its wire form.
func (e *Execution) UnmarshalJSON(data []byte) error {
	var in executionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ID = in.ID
	e.WorkflowID = in.WorkflowID
	e.Status = in.Status
	e.Error = in.Error
	e.Context = in.Context
	e.Logs = in.Logs
	if e.Logs == nil {
		e.Logs = make(map[string][]NodeLog)
	}
	e.StartTime = time.Time{}
	e.EndTime = time.Time{}
	if in.StartTime != "" {
		t, err := time.ParseInLocation(TimeFormat, in.StartTime, time.Local)
		if err != nil {
			return err
		}
		e.StartTime = t
	}
	if in.EndTime != "" {
		t, err := time.ParseInLocation(TimeFormat, in.EndTime, time.Local)
		if err != nil {
			return err
		}
		e.EndTime = t
	}
	return nil
}
