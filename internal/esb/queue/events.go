package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the operations a queue emits diagnostic events for.
type EventType string

const (
	EventEnqueue   EventType = "Enqueue"
	EventPeek      EventType = "Peek"
	EventRemove    EventType = "Remove"
	EventOnMessage EventType = "OnMessage"
)

// Event is a best-effort, diagnostic notification published through the
// bus lifecycle manager. It must never influence message outcome (§4.2).
type Event struct {
	QueueName string
	EventType EventType
	MessageID uuid.UUID
	Status    string
	At        time.Time
}

// ErrorEvent is the error-flavored counterpart to Event, published instead
// of (not in addition to) Event when an operation fails.
type ErrorEvent struct {
	QueueName string
	EventType EventType
	MessageID uuid.UUID
	Err       error
	At        time.Time
}

// Publisher is the sink diagnostic events are handed to. Implementations
// must not block the dispatch loop; see internal/adapters/eventsink for
// the memory and NATS-backed implementations.
type Publisher interface {
	Publish(Event)
	PublishError(ErrorEvent)
}

// NopPublisher discards every event; used when a bus is constructed
// without an explicit publisher.
type NopPublisher struct{}

func (NopPublisher) Publish(Event)           {}
func (NopPublisher) PublishError(ErrorEvent) {}
