// Package message defines the data model the bus core moves around:
// the queued-message envelope, its lifecycle status, and the diff applied
// to it after each handler attempt.
package message

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the lifecycle state of a queued message.
type MessageStatus string

const (
	StatusCreated   MessageStatus = "Created"
	StatusDelivered MessageStatus = "Delivered"
	StatusCompleted MessageStatus = "Completed"
	StatusSuspended MessageStatus = "Suspended"
	StatusDeferred  MessageStatus = "Deferred"
	StatusAborted   MessageStatus = "Aborted"
)

// ErrorHandling overrides the queue's default retry policy for a single
// message, or configures the queue-wide default.
type ErrorHandling struct {
	MaxRetries int
	Interval   time.Duration
}

// CanRetry reports whether another attempt is allowed given the number of
// retries already performed.
func (e ErrorHandling) CanRetry(retryCount int) bool {
	return retryCount < e.MaxRetries
}

// Message is the opaque user payload plus the envelope metadata the bus
// needs to route, deliver, and retry it. When ContainsContent is true and
// HasSelfContent is false, the queue runtime saves Body through a
// bodystore.Provider at enqueue (if persistence is allowed); the runtime
// does not load it back, so Body stays populated in memory throughout.
type Message struct {
	MessageID       uuid.UUID
	ParentMessageID *uuid.UUID
	IDSession       *uuid.UUID

	PublisherID       string
	PublishingTimeUTC time.Time
	TimeToLiveUTC     *time.Time
	DelayedToUTC      *time.Time

	ContentType          string
	ContentEncoding      string
	IsCompressedContent  bool
	IsEncryptedContent   bool

	ContainsContent             bool
	HasSelfContent               bool
	DisabledMessagePersistence   bool

	Priority   int
	Headers    map[string]string
	RoutingKey string

	Timeout       *time.Duration
	RetryCount    int
	ErrorHandling *ErrorHandling

	MessageStatus MessageStatus

	SourceExchangeName string
	QueueName          string
	DisableFaultQueue  bool

	Body []byte
}

// NewMessage builds a message envelope in the Created state with sane
// zero-values for optional fields.
func NewMessage(publisherID string, body []byte) *Message {
	return &Message{
		MessageID:         uuid.New(),
		PublisherID:       publisherID,
		PublishingTimeUTC: time.Now().UTC(),
		ContentType:       "application/octet-stream",
		Headers:           make(map[string]string),
		MessageStatus:     StatusCreated,
		ContainsContent:   len(body) > 0,
		HasSelfContent:    true,
		Body:              body,
	}
}

// IsExpired reports whether the message's time-to-live has passed as of at.
func (m *Message) IsExpired(at time.Time) bool {
	return m.TimeToLiveUTC != nil && m.TimeToLiveUTC.Before(at)
}

// IsDelayed reports whether the message is not yet eligible for delivery.
func (m *Message) IsDelayed(at time.Time) bool {
	return m.DelayedToUTC != nil && m.DelayedToUTC.After(at)
}

// EffectiveErrorHandling resolves the message-level override against the
// queue default.
func (m *Message) EffectiveErrorHandling(queueDefault *ErrorHandling) *ErrorHandling {
	if m.ErrorHandling != nil {
		return m.ErrorHandling
	}
	return queueDefault
}

// MessageMetadataUpdate is the diff applied to a queued message after a
// dispatch attempt. Processed is true iff Status == StatusCompleted (§3
// invariant 5); constructors below keep that invariant without requiring
// every call site to maintain it by hand.
type MessageMetadataUpdate struct {
	Status       MessageStatus
	RetryCount   int
	DelayedToUTC *time.Time
	Processed    bool
}

// Completed builds the update applied when a handler finishes successfully.
func Completed() MessageMetadataUpdate {
	return MessageMetadataUpdate{Status: StatusCompleted, Processed: true}
}

// Deferred builds the update applied when a handler asks to be retried
// after delay, independent of the error-retry path.
func Deferred(retryCount int, delayedTo time.Time) MessageMetadataUpdate {
	return MessageMetadataUpdate{Status: StatusDeferred, RetryCount: retryCount, DelayedToUTC: &delayedTo}
}

// Retried builds the update applied when an error-handling retry is granted.
func Retried(retryCount int, delayedTo time.Time) MessageMetadataUpdate {
	return MessageMetadataUpdate{Status: StatusDeferred, RetryCount: retryCount, DelayedToUTC: &delayedTo}
}

// Suspended builds the update applied when retries are exhausted or the
// handler result says so explicitly.
func Suspended(retryCount int) MessageMetadataUpdate {
	return MessageMetadataUpdate{Status: StatusSuspended, RetryCount: retryCount}
}

// Aborted builds the update applied when a message is abandoned outright.
func Aborted(retryCount int) MessageMetadataUpdate {
	return MessageMetadataUpdate{Status: StatusAborted, RetryCount: retryCount}
}

// Apply mutates m in place per the update, preserving invariant 5
// (Processed == true iff Status == Completed) and invariant 6 (RetryCount
// is monotonically non-decreasing).
func (u MessageMetadataUpdate) Apply(m *Message) {
	m.MessageStatus = u.Status
	if u.RetryCount > m.RetryCount {
		m.RetryCount = u.RetryCount
	}
	if u.DelayedToUTC != nil {
		m.DelayedToUTC = u.DelayedToUTC
	}
}
