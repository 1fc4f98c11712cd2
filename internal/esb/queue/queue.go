package queue

import (
	"hash/fnv"
	"time"

	"github.com/riverbus/envelope/internal/esb/handler"
	"github.com/riverbus/envelope/internal/esb/message"
)

// QueueType selects the container's ordering policy.
type QueueType string

const (
	TypeSequentialFIFO      QueueType = "Sequential_FIFO"
	TypeSequentialDelayable QueueType = "Sequential_Delayable"
)

// Status is the administrative state of a queue.
type Status string

const (
	StatusRunning    Status = "Running"
	StatusSuspended  Status = "Suspended"
	StatusTerminated Status = "Terminated"
)

// ID is a deterministic hash of a queue name (invariant 1: equal names
// yield equal ids). It is derived, never assigned, so two Queue values
// built from the same name always compare equal on ID.
type ID uint64

// NewID derives the deterministic id for a queue name.
func NewID(name string) ID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return ID(h.Sum64())
}

// Definition is the static configuration of a queue: everything needed to
// construct a MessageQueue, as distinct from its runtime state.
type Definition struct {
	QueueName                string
	QueueType                QueueType
	IsPull                   bool
	MaxSize                  int // 0 means unbounded
	DefaultProcessingTimeout time.Duration
	// FetchInterval paces the dispatch loop's tick rate for this queue
	// (§9 open question, resolved in SPEC_FULL §5.1: minimum spacing
	// between ticks of the asynchronous-push dispatch loop). Pull
	// consumers calling TryPeekAsync are not throttled. Zero disables
	// throttling.
	FetchInterval time.Duration
	// IsPersistent is hard-wired false: see SPEC_FULL §9 open-question
	// resolution. No code path in this repository flips it.
	IsPersistent   bool
	IsFaultQueue   bool
	ErrorHandling  *message.ErrorHandling
	FaultQueueName string // empty disables fault routing at the queue level

	// HandleMessage is set for push queues; nil for pull queues.
	HandleMessage handler.Handler
}

// ID derives this definition's deterministic queue id.
func (d Definition) ID() ID { return NewID(d.QueueName) }
