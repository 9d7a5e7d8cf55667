// Package emit provides the pluggable observability event pipeline for
// dagflow workflow execution.
package emit

// Event is an observability event emitted during workflow execution.
//
// The executor emits workflow_start, node_start, node_end, node_error,
// node_skipped, and workflow_end events. Emitters can log them, turn them
// into spans, or ship them to analytics backends.
type Event struct {
	// ExecutionID identifies the run that emitted this event.
	ExecutionID string

	// WorkflowID identifies the workflow definition being run.
	WorkflowID string

	// NodeID identifies the node, empty for workflow-level events.
	NodeID string

	// Level is the topological level being driven, -1 for workflow-level
	// events.
	Level int

	// Msg is the event kind (node_start, node_end, ...).
	Msg string

	// Meta carries additional structured data. Common keys: "duration_ms",
	// "error", "status", "mode".
	Meta map[string]any
}
