package cache

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a resolver event.
type EventKind string

const (
	EventHit             EventKind = "hit"
	EventTierUnavailable EventKind = "tier_unavailable"
	EventFallback        EventKind = "fallback"
	EventWriteBack       EventKind = "write_back"
	EventWriteBackFailed EventKind = "write_back_failed"
	EventReinitialized   EventKind = "reinitialized"
	EventMemoryCleared   EventKind = "memory_cleared"
)

// Event is a non-fatal diagnostic for observers such as a UI status line.
type Event struct {
	ID   uuid.UUID
	Kind EventKind
	Name string
	Tier Tier
	Err  error
	At   time.Time
}

// EventSink receives events synchronously from resolver goroutines.
// Implementations must be safe for concurrent use and must not block.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }
