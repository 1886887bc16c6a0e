package task

import (
	"sync"

	"github.com/youruser/quill/internal/diff"
)

// EventType labels what changed.
type EventType string

const (
	// EventStatus marks a lifecycle move with no text attached:
	// thinking, cancelled, idle after accept or reject.
	EventStatus EventType = "status"
	// EventChunk carries newly arrived content.
	EventChunk EventType = "chunk"
	// EventDone carries the finished, reviewable result.
	EventDone EventType = "done"
	// EventError carries a recorded failure.
	EventError EventType = "error"
	// EventPromoted announces a session's server-confirmed id.
	EventPromoted EventType = "promoted"
)

// Event is one observable change on a session. SessionID is the
// remote id once the session is promoted and the local id before
// that; LocalID is always present so hosts can correlate events
// across the promotion boundary.
type Event struct {
	Type      EventType    `json:"type"`
	SessionID int64        `json:"session_id"`
	LocalID   int64        `json:"local_id"`
	OpID      string       `json:"op_id,omitempty"`
	Status    Status       `json:"status,omitempty"`
	Chunk     string       `json:"chunk,omitempty"`
	Result    *diff.Result `json:"result,omitempty"`
	Err       *Error       `json:"error,omitempty"`
}

// Bus fans events out to subscribers. Handlers are snapshotted before
// delivery, so a handler may subscribe or unsubscribe reentrantly.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]func(Event)
	nextID   int
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns its unsubscribe func.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers the event to every subscriber synchronously.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.handlers))
	for _, fn := range b.handlers {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}
