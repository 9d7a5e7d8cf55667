// Package flow provides the core DAG workflow execution engine for dagflow.
package flow

import (
	"errors"
	"strings"
)

// Cancelled is the reserved error string recorded on an Execution when an
// external caller cancels a running workflow through the StateStore.
const Cancelled = "cancelled"

// ErrAlreadyRegistered indicates a node type collision in a strict Registry.
var ErrAlreadyRegistered = errors.New("node type already registered")

// ErrUnknownNodeType indicates that no factory matched the requested type.
var ErrUnknownNodeType = errors.New("unknown node type")

// ErrExecutionNotFound is returned by StateStore implementations when the
// requested execution id does not exist (or has expired).
var ErrExecutionNotFound = errors.New("execution not found")

// ErrNotRunning is returned by Cancel when the target execution is not in
// the running state. Terminal executions cannot be cancelled.
var ErrNotRunning = errors.New("execution is not running")

// ValidationError aggregates workflow or graph validation failures.
//
// It is surfaced through the returned Execution in failed state rather than
// raised out of Execute; the executor never returns an error for expected
// failure modes.
type ValidationError struct {
	// Errors holds the individual validation failure messages.
	Errors []string
}

// Error implements the error interface by joining all messages.
func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// ConfigError reports an invalid node or engine configuration value, such as
// an executionMode outside {sync, async}.
type ConfigError struct {
	// Field is the offending configuration key.
	Field string

	// Message describes what is wrong with the value.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return "invalid config " + e.Field + ": " + e.Message
	}
	return "invalid config: " + e.Message
}

// NodeError represents an error produced while constructing or validating a
// node. It carries the node id for observability and wraps the cause.
type NodeError struct {
	// NodeID identifies which node produced this error.
	NodeID string

	// Message is the human-readable error description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
