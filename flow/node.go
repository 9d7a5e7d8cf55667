package flow

import (
	"context"
	"time"
)

// ExecutionMode controls how the executor dispatches a node within its level.
type ExecutionMode string

const (
	// ModeSync runs the node inline on the executor goroutine.
	ModeSync ExecutionMode = "sync"

	// ModeAsync dispatches the node to the bounded worker pool; all async
	// nodes of a level run concurrently and are awaited as a barrier.
	ModeAsync ExecutionMode = "async"
)

// Node is the capability a work unit exposes to the executor.
//
// Nodes are the fundamental building blocks of dagflow workflows. Each node
// carries its identity and configuration and implements Execute, which
// receives a read-only snapshot of the shared context, the assembled input
// from its upstream producers, and its own config with template variables
// rendered.
//
// New node kinds are added by registering a factory with a Registry, not by
// modifying the engine.
type Node interface {
	// ID returns the node id, unique within its workflow.
	ID() string

	// Name returns the human-readable label.
	Name() string

	// Type returns the registered kind (http, database, transform, code, ...).
	Type() string

	// Config returns the node's raw configuration tree as authored. The
	// executor never mutates it; template rendering happens on a copy that
	// is handed to Execute via Invocation.Config.
	Config() map[string]any

	// Execute runs the node's work and reports the outcome as a Result.
	// Implementations must not mutate inv.State; the executor is the single
	// writer of the shared context.
	Execute(ctx context.Context, inv Invocation) Result

	// Validate checks the node's configuration. It is called at workflow
	// build time; a non-nil error makes the workflow invalid.
	Validate() error

	// Describe returns static metadata about the node kind.
	Describe() Description
}

// Invocation carries everything a node may read during Execute.
type Invocation struct {
	// State is an immutable snapshot of the shared context at dispatch time.
	State *Context

	// Input maps upstream node ids to the output data they published.
	Input map[string]any

	// Config is the node's configuration with {{dotted.key}} templates
	// substituted from the current context.
	Config map[string]any
}

// Result is what every node returns from Execute.
//
// Exactly one of the success/failure branches is taken: when Success is true
// Error is empty, and when Success is false Error carries the failure
// message. Data may be present on either branch; Logs may be empty.
type Result struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Logs    []NodeLog `json:"logs,omitempty"`
}

// NodeLog is a single log line emitted by a node during Execute. The
// executor merges these into the Execution's per-node log groups.
type NodeLog struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Ok builds a successful Result carrying the given output data.
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed Result with the given error message.
func Fail(message string) Result {
	return Result{Success: false, Error: message}
}

// Description is static metadata a node kind exposes for discovery and UIs.
type Description struct {
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Icon         string         `json:"icon"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
}

// Base carries node identity and configuration and implements the identity
// half of the Node interface. Node implementations embed Base and provide
// Execute/Validate/Describe.
type Base struct {
	NodeID   string         `json:"id"`
	NodeName string         `json:"name"`
	NodeType string         `json:"type"`
	Conf     map[string]any `json:"config"`
}

// ID returns the node id.
func (b *Base) ID() string { return b.NodeID }

// Name returns the human-readable label.
func (b *Base) Name() string { return b.NodeName }

// Type returns the registered kind.
func (b *Base) Type() string { return b.NodeType }

// Config returns the raw configuration tree. Never nil.
func (b *Base) Config() map[string]any {
	if b.Conf == nil {
		b.Conf = make(map[string]any)
	}
	return b.Conf
}

// StopOnFail reports whether a failure of this node is fatal to the run.
// Defaults to true when the stopWorkflowOnFail config key is absent.
func (b *Base) StopOnFail() bool {
	if v, ok := b.Config()["stopWorkflowOnFail"].(bool); ok {
		return v
	}
	return true
}

// Mode returns the node's execution mode. Defaults to ModeSync when the
// executionMode config key is absent.
func (b *Base) Mode() ExecutionMode {
	if v, ok := b.Config()["executionMode"].(string); ok && v != "" {
		return ExecutionMode(v)
	}
	return ModeSync
}

// Validate checks the core config keys shared by every node kind.
func (b *Base) Validate() error {
	if b.NodeID == "" {
		return &ConfigError{Field: "id", Message: "node id cannot be empty"}
	}
	if mode, ok := b.Config()["executionMode"].(string); ok && mode != "" {
		if m := ExecutionMode(mode); m != ModeSync && m != ModeAsync {
			return &ConfigError{
				Field:   "executionMode",
				Message: "must be \"sync\" or \"async\", got " + mode,
			}
		}
	}
	if v, ok := b.Config()["stopWorkflowOnFail"]; ok {
		if _, isBool := v.(bool); !isBool {
			return &ConfigError{Field: "stopWorkflowOnFail", Message: "must be a boolean"}
		}
	}
	return nil
}

// Describe returns an empty description; node kinds override it.
func (b *Base) Describe() Description {
	return Description{}
}

// ModeOf resolves the execution mode of any Node from its config, applying
// the sync default. The executor uses this instead of requiring nodes to
// embed Base.
func ModeOf(n Node) ExecutionMode {
	if v, ok := n.Config()["executionMode"].(string); ok && v != "" {
		return ExecutionMode(v)
	}
	return ModeSync
}

// StopOnFail resolves the failure policy of any Node from its config,
// applying the fatal-by-default rule.
func StopOnFail(n Node) bool {
	if v, ok := n.Config()["stopWorkflowOnFail"].(bool); ok {
		return v
	}
	return true
}
