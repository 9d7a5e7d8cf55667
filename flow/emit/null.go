package emit

// NullEmitter discards every event. It is the default when no emitter is
// configured, which keeps the executor free of nil checks at call sites.
type NullEmitter struct{}

// NewNullEmitter returns the discarding emitter.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

// Emit discards the event.
func (*NullEmitter) Emit(Event) {}
