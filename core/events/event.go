package events

import (
	"sync"

	"ledgerprograms/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Wire is implemented by events that render into the RPC representation.
type Wire interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// Buffer collects events until the owning transaction commits. Events that do
// not render to a wire form are dropped.
type Buffer struct {
	mu     sync.Mutex
	events []*types.Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	wire, ok := evt.(Wire)
	if !ok {
		return
	}
	rendered := wire.Event()
	if rendered == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, rendered)
	b.mu.Unlock()
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []*types.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Fanout delivers each event to every subscriber in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, sub := range f {
		if sub != nil {
			sub.Emit(evt)
		}
	}
}

// Committed wraps a rendered event that belongs to a committed transaction.
type Committed struct {
	Receipt *types.Receipt
	Payload *types.Event
}

// EventType satisfies Event.
func (c Committed) EventType() string {
	if c.Payload == nil {
		return ""
	}
	return c.Payload.Type
}

// Event satisfies Wire.
func (c Committed) Event() *types.Event { return c.Payload }
