package handler

import (
	"time"

	"github.com/riverbus/envelope/internal/esb/esberr"
	"github.com/riverbus/envelope/internal/esb/message"
)

// Outcome is the tag of a MessageHandlerResult sum type (§9 DESIGN NOTES:
// "model MessageHandlerResult as a tagged variant rather than a record with
// mutually-exclusive flags").
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeDeferred
	OutcomeRetry
	OutcomeSuspended
	OutcomeAborted
	OutcomeError
)

// String renders the outcome for logging and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeRetry:
		return "retry"
	case OutcomeSuspended:
		return "suspended"
	case OutcomeAborted:
		return "aborted"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is what a handler returns from HandleAsync. Only the fields
// relevant to Outcome are meaningful; the constructors below are the
// intended way to build one so illegal combinations are unrepresentable in
// practice even though Go has no sum types.
type Result struct {
	Outcome       Outcome
	RetryInterval time.Duration // set only for OutcomeDeferred / OutcomeRetry override

	ClientMessage string
	IDCommandQuery *string
	Detail        error
}

// Completed signals that the message was fully handled.
func Completed() Result { return Result{Outcome: OutcomeCompleted} }

// Deferred signals that the message should be retried after interval,
// independent of the queue's error-handling policy.
func Deferred(interval time.Duration) Result {
	return Result{Outcome: OutcomeDeferred, RetryInterval: interval}
}

// Retry signals a recoverable failure; the interval, if non-zero,
// overrides the queue/message ErrorHandling interval.
func Retry(interval time.Duration) Result {
	return Result{Outcome: OutcomeRetry, RetryInterval: interval}
}

// Suspended signals that the message (and, for FIFO queues, the queue
// itself) should stop advancing until external resumption.
func Suspended() Result { return Result{Outcome: OutcomeSuspended} }

// Aborted signals the message should be abandoned without retry.
func Aborted() Result { return Result{Outcome: OutcomeAborted} }

// Error signals that the handler failed outright. HasTransactionRollbackError
// always reports true for this outcome.
func Error(clientMessage string, detail error) Result {
	return Result{Outcome: OutcomeError, ClientMessage: clientMessage, Detail: detail}
}

// HasErrors reports whether the result carries error information that the
// interceptor must enrich with defaults before returning it to the caller.
func (r Result) HasErrors() bool {
	return r.Outcome == OutcomeError || r.Detail != nil
}

// HasTransactionRollbackError reports whether the current transaction
// should be scheduled for rollback as a consequence of this result.
func (r Result) HasTransactionRollbackError() bool {
	return r.Outcome == OutcomeError
}

// ToMetadataUpdate interprets the result against the handler-invocation
// table in spec §4.2, consulting effective error handling for the Retry
// outcome.
func ToMetadataUpdate(r Result, retryCount int, effective *message.ErrorHandling, now time.Time) message.MessageMetadataUpdate {
	switch r.Outcome {
	case OutcomeCompleted:
		return message.Completed()
	case OutcomeDeferred:
		return message.Deferred(retryCount, now.Add(r.RetryInterval))
	case OutcomeRetry:
		interval := r.RetryInterval
		if effective != nil && interval == 0 {
			interval = effective.Interval
		}
		if effective != nil && effective.CanRetry(retryCount) && interval > 0 {
			return message.Retried(retryCount+1, now.Add(interval))
		}
		return message.Suspended(retryCount)
	case OutcomeSuspended:
		return message.Suspended(retryCount)
	case OutcomeAborted:
		return message.Aborted(retryCount)
	default:
		// OutcomeError: message remains in its prior status; no retry logic
		// is applied per §4.2 failure semantics. Caller is responsible for
		// not committing a status change in this case.
		return message.MessageMetadataUpdate{}
	}
}

// EnrichDefaults fills in ClientMessage and IDCommandQuery when the
// interceptor observes them missing (§4.5 step 4).
func (r *Result) EnrichDefaults(messageID string) {
	if r.ClientMessage == "" {
		r.ClientMessage = esberr.DefaultClientMessage
	}
	if r.IDCommandQuery == nil {
		id := messageID
		r.IDCommandQuery = &id
	}
}
