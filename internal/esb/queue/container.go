package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riverbus/envelope/internal/esb/esberr"
	"github.com/riverbus/envelope/internal/esb/message"
)

// container is the ordered in-memory buffer of queued messages (§4.1). Two
// implementations exist: fifoContainer (strict order, no skipping past a
// blocked head) and delayableContainer (skips past not-yet-eligible
// messages to find the next deliverable one). Both are owned exclusively
// by their MessageQueue and are safe for concurrent use only through the
// queue's own dispatch lock plus the mutex here, which protects the
// underlying slice from the handful of callers (admin introspection, the
// dispatch loop) that touch it directly.
type container interface {
	Enqueue(items ...*message.Message)
	TryPeek(now time.Time) (*message.Message, error)
	TryRemove(id uuid.UUID) error
	Update(id uuid.UUID, update message.MessageMetadataUpdate) error
	Count() int
	Snapshot() []*message.Message
}

type fifoContainer struct {
	mu    sync.Mutex
	items []*message.Message
}

func newFIFOContainer() *fifoContainer {
	return &fifoContainer{}
}

func (c *fifoContainer) Enqueue(items ...*message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, items...)
}

// TryPeek returns the head of the queue, or nil if empty. FIFO order is
// strict: no skipping past the head, even if it is delayed, matching the
// container interface's "strict order preserved, no skip" rule for FIFO.
func (c *fifoContainer) TryPeek(now time.Time) (*message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return nil, nil
	}
	return c.items[0], nil
}

func (c *fifoContainer) TryRemove(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.items {
		if m.MessageID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return esberr.ErrNotFound
}

func (c *fifoContainer) Update(id uuid.UUID, update message.MessageMetadataUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.items {
		if m.MessageID == id {
			update.Apply(m)
			return nil
		}
	}
	return esberr.ErrNotFound
}

func (c *fifoContainer) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *fifoContainer) Snapshot() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*message.Message, len(c.items))
	copy(out, c.items)
	return out
}

// delayableContainer behaves like fifoContainer except TryPeek skips past
// messages whose DelayedToUTC has not yet arrived to find the next
// eligible one, preserving enqueue order among the eligible messages.
type delayableContainer struct {
	mu    sync.Mutex
	items []*message.Message
}

func newDelayableContainer() *delayableContainer {
	return &delayableContainer{}
}

func (c *delayableContainer) Enqueue(items ...*message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, items...)
}

func (c *delayableContainer) TryPeek(now time.Time) (*message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.items {
		if !m.IsDelayed(now) {
			return m, nil
		}
	}
	return nil, nil
}

func (c *delayableContainer) TryRemove(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.items {
		if m.MessageID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return esberr.ErrNotFound
}

func (c *delayableContainer) Update(id uuid.UUID, update message.MessageMetadataUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.items {
		if m.MessageID == id {
			update.Apply(m)
			return nil
		}
	}
	return esberr.ErrNotFound
}

func (c *delayableContainer) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *delayableContainer) Snapshot() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*message.Message, len(c.items))
	copy(out, c.items)
	return out
}
