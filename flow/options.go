package flow

import "github.com/dagflow-io/dagflow/flow/emit"

// DefaultMaxWorkers is the worker pool size when none is configured.
const DefaultMaxWorkers = 4

// Option is a functional option for configuring an Executor.
//
// Example:
//
//	exec := flow.NewExecutor(
//	    flow.WithMaxWorkers(8),
//	    flow.WithStore(redisStore),
//	    flow.WithLogger(flow.NewLogger(flow.LevelDebug)),
//	)
type Option func(*Executor)

// WithMaxWorkers sets the bounded worker pool size for async nodes. Values
// below 1 are clamped to 1; one worker is always sufficient for progress
// because no task in a level depends on another task in the same level.
func WithMaxWorkers(n int) Option {
	return func(e *Executor) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithStore attaches a StateStore for execution persistence, history, and
// cancellation. A nil store keeps the NopStore default.
func WithStore(st StateStore) Option {
	return func(e *Executor) {
		if st != nil {
			e.store = st
		}
	}
}

// WithLogger replaces the executor's logger.
func WithLogger(l *Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEmitter attaches an observability emitter for workflow and node
// lifecycle events.
func WithEmitter(em emit.Emitter) Option {
	return func(e *Executor) {
		if em != nil {
			e.emitter = em
		}
	}
}

// WithMetrics attaches a Prometheus metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}
