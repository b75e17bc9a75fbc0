package events

// Event is a structured record of a protocol state change: a trade created,
// a deposit taken, a settlement, a return.
type Event interface {
	EventType() string
}

// Emitter appends events for off-ledger observers (RPC clients, metrics,
// indexers). Emission is fire-and-forget and never required for correctness.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards all events. Engines default to it so event wiring
// stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
