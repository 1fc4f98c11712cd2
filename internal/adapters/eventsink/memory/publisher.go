// Package memory is an in-process queue.Publisher used by tests and by
// single-instance deployments that want event visibility (e.g. for an
// admin API's recent-activity view) without standing up a broker.
package memory

import (
	"sync"

	"github.com/riverbus/envelope/internal/esb/queue"
)

// Publisher buffers the most recent events and error events in memory,
// evicting the oldest entry once capacity is reached.
type Publisher struct {
	mu       sync.Mutex
	capacity int
	events   []queue.Event
	errors   []queue.ErrorEvent
}

// New returns a Publisher retaining up to capacity entries of each kind.
func New(capacity int) *Publisher {
	if capacity <= 0 {
		capacity = 256
	}
	return &Publisher{capacity: capacity}
}

func (p *Publisher) Publish(e queue.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = appendBounded(p.events, e, p.capacity)
}

func (p *Publisher) PublishError(e queue.ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = appendBounded(p.errors, e, p.capacity)
}

// Events returns a snapshot of the buffered events, oldest first.
func (p *Publisher) Events() []queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.Event, len(p.events))
	copy(out, p.events)
	return out
}

// Errors returns a snapshot of the buffered error events, oldest first.
func (p *Publisher) Errors() []queue.ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.ErrorEvent, len(p.errors))
	copy(out, p.errors)
	return out
}

func appendBounded[T any](s []T, v T, capacity int) []T {
	s = append(s, v)
	if len(s) > capacity {
		s = s[len(s)-capacity:]
	}
	return s
}
