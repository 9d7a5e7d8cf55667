package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Level is a log severity. Levels order debug < info < warning < error <
// critical; a Logger drops entries below its configured minimum.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

// String returns the level name used on the wire and in exports.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel resolves a level name. Unknown names are an error.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "critical":
		return LevelCritical, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Entry is one structured log record in the pipeline.
type Entry struct {
	Timestamp   time.Time      `json:"-"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context,omitempty"`
	ExecutionID string         `json:"execution_id,omitempty"`
	NodeID      string         `json:"node_id,omitempty"`
}

// entryJSON carries the formatted timestamp alongside the Entry fields.
type entryJSON struct {
	Timestamp   string         `json:"timestamp"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context,omitempty"`
	ExecutionID string         `json:"execution_id,omitempty"`
	NodeID      string         `json:"node_id,omitempty"`
}

// MarshalJSON formats the timestamp with microsecond precision.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Timestamp:   e.Timestamp.Format(TimeFormat),
		Level:       e.Level,
		Message:     e.Message,
		Context:     e.Context,
		ExecutionID: e.ExecutionID,
		NodeID:      e.NodeID,
	})
}

// UnmarshalJSON parses the formatted timestamp back.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.Level = in.Level
	e.Message = in.Message
	e.Context = in.Context
	e.ExecutionID = in.ExecutionID
	e.NodeID = in.NodeID
	e.Timestamp = time.Time{}
	if in.Timestamp != "" {
		t, err := time.ParseInLocation(TimeFormat, in.Timestamp, time.Local)
		if err != nil {
			return err
		}
		e.Timestamp = t
	}
	return nil
}

// Logger is the level-filtered structured log pipeline. It keeps an
// in-process ordered buffer and, when a StateStore is attached, also ships
// each entry to the store's per-day log list.
//
// Logger methods are safe for concurrent use; async node workers log
// through the same instance as the executor goroutine.
type Logger struct {
	mu      sync.Mutex
	min     Level
	entries []Entry
	store   StateStore
}

// NewLogger creates a Logger that drops entries below min.
func NewLogger(min Level) *Logger {
	return &Logger{min: min}
}

// AttachStore connects a StateStore; subsequent entries are also appended
// to the store's per-day log list. Store errors are swallowed: logging must
// never fail the workflow.
func (l *Logger) AttachStore(st StateStore) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store = st
}

// Log records one entry if it passes the level filter.
func (l *Logger) Log(level Level, msg string, ctx map[string]any, executionID, nodeID string) {
	if level < l.min {
		return
	}
	entry := Entry{
		Timestamp:   time.Now(),
		Level:       level.String(),
		Message:     msg,
		Context:     ctx,
		ExecutionID: executionID,
		NodeID:      nodeID,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	st := l.store
	l.mu.Unlock()

	if st != nil {
		day := entry.Timestamp.Format("2006-01-02")
		_ = st.AppendLog(context.Background(), day, entry)
	}
}

// Debug logs at debug level without execution scope.
func (l *Logger) Debug(msg string, ctx map[string]any) { l.Log(LevelDebug, msg, ctx, "", "") }

// Info logs at info level without execution scope.
func (l *Logger) Info(msg string, ctx map[string]any) { l.Log(LevelInfo, msg, ctx, "", "") }

// Warning logs at warning level without execution scope.
func (l *Logger) Warning(msg string, ctx map[string]any) { l.Log(LevelWarning, msg, ctx, "", "") }

// Error logs at error level without execution scope.
func (l *Logger) Error(msg string, ctx map[string]any) { l.Log(LevelError, msg, ctx, "", "") }

// Critical logs at critical level without execution scope.
func (l *Logger) Critical(msg string, ctx map[string]any) { l.Log(LevelCritical, msg, ctx, "", "") }

// Entries returns a copy of the buffered entries in emission order.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ExportJSON renders the buffer as pretty-printed JSON.
func (l *Logger) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(l.Entries(), "", "  ")
}

// ExportCSV renders the buffer as quoted, CRLF-terminated CSV rows with the
// header timestamp,level,message,execution_id,node_id.
func (l *Logger) ExportCSV() []byte {
	var buf bytes.Buffer
	writeCSVRow(&buf, "timestamp", "level", "message", "execution_id", "node_id")
	for _, e := range l.Entries() {
		writeCSVRow(&buf, e.Timestamp.Format(TimeFormat), e.Level, e.Message, e.ExecutionID, e.NodeID)
	}
	return buf.Bytes()
}

// writeCSVRow writes one fully quoted CSV row with CRLF termination.
func writeCSVRow(buf *bytes.Buffer, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}

// ExportText renders the buffer as plain text lines of the form
// "[ts] LEVEL: message (Execution: …)(Node: …)".
func (l *Logger) ExportText() []byte {
	var buf bytes.Buffer
	for _, e := range l.Entries() {
		fmt.Fprintf(&buf, "[%s] %s: %s", e.Timestamp.Format(TimeFormat), strings.ToUpper(e.Level), e.Message)
		if e.ExecutionID != "" {
			fmt.Fprintf(&buf, " (Execution: %s)", e.ExecutionID)
		}
		if e.NodeID != "" {
			fmt.Fprintf(&buf, " (Node: %s)", e.NodeID)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
