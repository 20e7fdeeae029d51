package emit

// NullEmitter discards all events. Use it when observability output is
// unwanted without special-casing a nil emitter.
type NullEmitter struct{}

// NewNullEmitter returns an emitter that drops everything.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit implements Emitter as a no-op.
func (NullEmitter) Emit(Event) {}
