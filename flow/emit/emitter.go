package emit

// Emitter receives observability events from workflow execution.
//
// Implementations should be non-blocking, thread-safe (one emitter may be
// shared by concurrent runs), and resilient: an emitter failure must never
// fail the workflow, so Emit does not return an error and must not panic.
type Emitter interface {
	Emit(event Event)
}
