package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/riverbus/envelope/internal/common/metrics"
	"github.com/riverbus/envelope/internal/esb/bodystore"
	"github.com/riverbus/envelope/internal/esb/esberr"
	"github.com/riverbus/envelope/internal/esb/handler"
	"github.com/riverbus/envelope/internal/esb/message"
	"github.com/riverbus/envelope/internal/esb/transaction"
)

// RuntimeContext is the ambient context threaded through every queue
// operation in place of a service-locator lookup (§9 DESIGN NOTES). It is
// shared, read-only from the core's perspective, across every queue owned
// by one bus.
type RuntimeContext struct {
	Body   bodystore.Provider // optional
	Events Publisher
	Log    zerolog.Logger
}

func (rc RuntimeContext) events() Publisher {
	if rc.Events == nil {
		return NopPublisher{}
	}
	return rc.Events
}

// MessageQueue is the per-logical-queue runtime (§4.2): it owns a
// container, drives the dispatch loop under a single async mutex, and
// coordinates fault routing and body persistence through the shared
// RuntimeContext.
type MessageQueue struct {
	def Definition
	rc  RuntimeContext

	store     container
	dispatch  *asyncMutex
	trigger   chan struct{}
	limiter   *rate.Limiter
	fault     *MessageQueue

	mu       sync.RWMutex
	status   Status
	disposed atomic.Bool

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New constructs a MessageQueue from its static definition. If faultQueue is
// non-nil, expired messages are routed there (§3 invariant 4, §4.2 step 5).
func New(def Definition, rc RuntimeContext, faultQueue *MessageQueue) *MessageQueue {
	var c container
	switch def.QueueType {
	case TypeSequentialDelayable:
		c = newDelayableContainer()
	default:
		c = newFIFOContainer()
	}

	var limiter *rate.Limiter
	if def.FetchInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(def.FetchInterval), 1)
	}

	q := &MessageQueue{
		def:      def,
		rc:       rc,
		store:    c,
		dispatch: newAsyncMutex(),
		trigger:  make(chan struct{}, 1),
		limiter:  limiter,
		fault:    faultQueue,
		status:   StatusRunning,
		stopCh:   make(chan struct{}),
	}

	if !def.IsPull && def.HandleMessage != nil {
		q.wg.Add(1)
		go q.dispatchLoop()
	}

	return q
}

// ID returns this queue's deterministic id.
func (q *MessageQueue) ID() ID { return q.def.ID() }

// FaultQueueName returns the name of the fault queue this queue routes
// expired messages to, or "" if fault routing is disabled.
func (q *MessageQueue) FaultQueueName() string { return q.def.FaultQueueName }

// Name returns the queue's stable name.
func (q *MessageQueue) Name() string { return q.def.QueueName }

// Status returns the current administrative status.
func (q *MessageQueue) Status() Status {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.status
}

// setStatus is monotone: Running -> Suspended/Terminated, Terminated sticks
// (§4.2 "Queue-status assignment is monotone").
func (q *MessageQueue) setStatus(s Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.status == StatusTerminated {
		return
	}
	q.status = s
	metrics.QueueStatus.WithLabelValues(q.def.QueueName).Set(statusGaugeValue(s))
}

func statusGaugeValue(s Status) float64 {
	switch s {
	case StatusSuspended:
		return 1
	case StatusTerminated:
		return 2
	default:
		return 0
	}
}

// Resume flips a Suspended queue back to Running so the dispatch loop can
// advance past what used to be a blocked FIFO head (external resumption,
// §3 invariant 3 / scenario 4).
func (q *MessageQueue) Resume() {
	q.mu.Lock()
	if q.status == StatusSuspended {
		q.status = StatusRunning
	}
	q.mu.Unlock()
	q.signal()
}

// Suspend administratively halts dispatch without disabling enqueue, the
// reversible counterpart to Resume — distinct from Terminate, which is
// permanent. Used by the admin API's pause endpoint.
func (q *MessageQueue) Suspend() {
	q.setStatus(StatusSuspended)
	q.signal()
}

// Terminate moves the queue to Terminated; subsequent enqueues fail with
// InvalidState (§3 invariant 2).
func (q *MessageQueue) Terminate() {
	q.mu.Lock()
	q.status = StatusTerminated
	q.mu.Unlock()
}

// Dispose stops the background dispatch loop and marks the queue unusable.
// Every subsequent operation fails with a disposed-object error (§4.2
// Failure semantics).
func (q *MessageQueue) Dispose() {
	q.disposed.Store(true)
	q.stopOnce.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}

func (q *MessageQueue) checkUsable() error {
	if q.disposed.Load() {
		return esberr.InvalidState(q.def.QueueName, "queue is disposed", esberr.ErrDisposed)
	}
	return nil
}

// EnqueueAsync appends msg to the container, persisting its body first if
// the provider allows it, then drives the message according to the
// queue's dispatch mode. async selects push-asynchronous (background loop)
// over push-synchronous (handled inline, in the caller's transaction)
// for push queues; it is ignored for pull queues.
func (q *MessageQueue) EnqueueAsync(ctx context.Context, m *message.Message, tx *transaction.Controller, async bool) error {
	if err := q.checkUsable(); err != nil {
		return err
	}
	q.mu.RLock()
	status := q.status
	q.mu.RUnlock()
	if status == StatusTerminated {
		return esberr.InvalidState(q.def.QueueName, "cannot enqueue into a terminated queue", esberr.ErrTerminated)
	}

	if bodystore.AllowMessagePersistence(q.rc.Body, false, m) {
		if err := q.rc.Body.SaveToStorage(ctx, []*message.Message{m}, tx); err != nil {
			q.rc.events().PublishError(ErrorEvent{QueueName: q.def.QueueName, EventType: EventEnqueue, MessageID: m.MessageID, Err: err, At: time.Now()})
			return esberr.Transport("failed to persist message body", err)
		}
	}

	m.QueueName = q.def.QueueName
	q.store.Enqueue(m)
	metrics.QueueMessagesEnqueued.WithLabelValues(q.def.QueueName).Inc()
	metrics.QueueDepth.WithLabelValues(q.def.QueueName).Set(float64(q.store.Count()))
	q.rc.events().Publish(Event{QueueName: q.def.QueueName, EventType: EventEnqueue, MessageID: m.MessageID, Status: string(m.MessageStatus), At: time.Now()})

	if q.def.IsPull || q.def.HandleMessage == nil {
		return nil
	}
	if async {
		q.signal()
		return nil
	}
	return q.handleOne(ctx, m, tx)
}

// TryPeekAsync returns the next eligible message without removing it.
func (q *MessageQueue) TryPeekAsync(now time.Time) (*message.Message, error) {
	if err := q.checkUsable(); err != nil {
		return nil, err
	}
	m, err := q.store.TryPeek(now)
	if err != nil {
		q.rc.events().PublishError(ErrorEvent{QueueName: q.def.QueueName, EventType: EventPeek, Err: err, At: time.Now()})
		return nil, err
	}
	id := uuid.Nil
	if m != nil {
		id = m.MessageID
	}
	q.rc.events().Publish(Event{QueueName: q.def.QueueName, EventType: EventPeek, MessageID: id, At: time.Now()})
	return m, nil
}

// TryRemoveAsync removes a message by id.
func (q *MessageQueue) TryRemoveAsync(id uuid.UUID) error {
	if err := q.checkUsable(); err != nil {
		return err
	}
	if err := q.store.TryRemove(id); err != nil {
		q.rc.events().PublishError(ErrorEvent{QueueName: q.def.QueueName, EventType: EventRemove, MessageID: id, Err: err, At: time.Now()})
		return err
	}
	q.rc.events().Publish(Event{QueueName: q.def.QueueName, EventType: EventRemove, MessageID: id, At: time.Now()})
	return nil
}

// GetCountAsync returns the number of messages currently buffered.
func (q *MessageQueue) GetCountAsync() (int, error) {
	if err := q.checkUsable(); err != nil {
		return 0, err
	}
	return q.store.Count(), nil
}

// signal requests a dispatch pass; concurrent signals coalesce into a
// single drain, matching §5's "concurrent triggers coalesce" rule.
func (q *MessageQueue) signal() {
	select {
	case q.trigger <- struct{}{}:
	default:
	}
}

func (q *MessageQueue) dispatchLoop() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case <-q.trigger:
			q.OnMessageAsync(context.Background())
		}
	}
}

// OnMessageAsync is the background dispatch tick (§4.2 "Dispatch loop").
// At most one instance runs per queue at a time; concurrent triggers
// coalesce because signal() is non-blocking once a pass is already queued.
func (q *MessageQueue) OnMessageAsync(ctx context.Context) {
	if err := q.dispatch.Lock(ctx); err != nil {
		return
	}
	defer q.dispatch.Unlock()

	for {
		if q.disposed.Load() {
			return
		}
		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
		}
		if q.Status() == StatusSuspended {
			return
		}

		tx := transaction.New()
		head, err := q.store.TryPeek(time.Now())
		if err != nil {
			tx.ScheduleRollback(err)
			_ = tx.Execute(ctx)
			q.rc.Log.Error().Err(err).Str("queue", q.def.QueueName).Msg("peek failed")
			return
		}
		if head == nil {
			_ = tx.Execute(ctx)
			return
		}

		if head.MessageStatus == message.StatusCompleted {
			_ = q.store.TryRemove(head.MessageID)
			_ = tx.Execute(ctx)
			continue
		}

		if head.IsExpired(time.Now()) {
			q.routeToFault(ctx, head, tx)
			continue
		}

		q.handleHead(ctx, head, tx)
	}
}

// handleOne is the push-synchronous path: invoke the handler inline, in the
// caller's transaction, and apply the resulting update immediately.
func (q *MessageQueue) handleOne(ctx context.Context, m *message.Message, tx *transaction.Controller) error {
	if m.IsExpired(time.Now()) {
		q.routeToFault(ctx, m, tx)
		return nil
	}
	update, result := q.invokeHandler(ctx, m, tx)
	if result.Outcome == handler.OutcomeError {
		// Failure semantics: retry logic is not applied; message stays in
		// its prior status and the transaction rolls back.
		return esberr.Handler(result.ClientMessage, result.Detail)
	}
	if err := q.store.Update(m.MessageID, update); err != nil {
		return esberr.Transport("failed to update message state", err)
	}
	if update.Processed {
		_ = q.store.TryRemove(m.MessageID)
	}
	q.applyFIFOSuspension(m.MessageStatus)
	return nil
}

func (q *MessageQueue) handleHead(ctx context.Context, head *message.Message, tx *transaction.Controller) {
	update, result := q.invokeHandler(ctx, head, tx)

	if result.Outcome == handler.OutcomeError {
		// Unhandled handler exception: rollback, no retry logic applied,
		// message remains in its prior status.
		tx.ScheduleRollback(result.Detail)
		_ = tx.Execute(ctx)
		q.rc.Log.Warn().Str("queue", q.def.QueueName).Str("messageId", head.MessageID.String()).Msg("handler error; message left in prior status")
		return
	}

	if err := q.store.Update(head.MessageID, update); err != nil {
		tx.ScheduleRollback(err)
		_ = tx.Execute(ctx)
		return
	}
	if update.Processed {
		if err := q.store.TryRemove(head.MessageID); err != nil {
			tx.ScheduleRollback(err)
			_ = tx.Execute(ctx)
			return
		}
		metrics.QueueMessagesCompleted.WithLabelValues(q.def.QueueName).Inc()
	}
	tx.ScheduleCommit()
	_ = tx.Execute(ctx)

	metrics.QueueDepth.WithLabelValues(q.def.QueueName).Set(float64(q.store.Count()))
	q.applyFIFOSuspension(update.Status)
}

// applyFIFOSuspension implements §3 invariant 3 / §4.2: in a FIFO queue,
// when the head enters Suspended or Aborted, the queue itself transitions
// to Suspended and stops delivering until external resumption.
func (q *MessageQueue) applyFIFOSuspension(status message.MessageStatus) {
	if q.def.QueueType != TypeSequentialFIFO {
		return
	}
	if status == message.StatusSuspended || status == message.StatusAborted {
		q.setStatus(StatusSuspended)
	}
}

func (q *MessageQueue) invokeHandler(ctx context.Context, m *message.Message, tx *transaction.Controller) (message.MessageMetadataUpdate, handler.Result) {
	timeout := q.def.DefaultProcessingTimeout
	if m.Timeout != nil {
		timeout = *m.Timeout
	}
	hctx := &handler.Context{Message: m, Transaction: tx, QueueName: q.def.QueueName}

	result := handler.Intercept(ctx, timeout, q.def.HandleMessage, m, hctx)
	metrics.HandlerInvocations.WithLabelValues(q.def.QueueName, result.Outcome.String()).Inc()

	q.rc.events().Publish(Event{QueueName: q.def.QueueName, EventType: EventOnMessage, MessageID: m.MessageID, Status: string(m.MessageStatus), At: time.Now()})

	effective := m.EffectiveErrorHandling(q.def.ErrorHandling)
	update := handler.ToMetadataUpdate(result, m.RetryCount, effective, time.Now())
	return update, result
}

// routeToFault enqueues an expired message to the fault queue unless
// DisableFaultQueue is set (§3 invariant 4, §4.2 step 5). Fault-queue
// enqueue failure rolls back and the message is retried next tick (§7
// FaultRoutingError).
func (q *MessageQueue) routeToFault(ctx context.Context, m *message.Message, tx *transaction.Controller) {
	if m.DisableFaultQueue || q.fault == nil {
		_ = q.store.TryRemove(m.MessageID)
		tx.ScheduleCommit()
		_ = tx.Execute(ctx)
		return
	}
	metrics.QueueFaultRoutings.WithLabelValues(q.def.QueueName).Inc()
	if err := q.fault.EnqueueAsync(ctx, m, tx, true); err != nil {
		tx.ScheduleRollback(err)
		_ = tx.Execute(ctx)
		q.rc.events().PublishError(ErrorEvent{QueueName: q.def.QueueName, EventType: EventOnMessage, MessageID: m.MessageID, Err: err, At: time.Now()})
		return
	}
	_ = q.store.TryRemove(m.MessageID)
	tx.ScheduleCommit()
	_ = tx.Execute(ctx)
}
