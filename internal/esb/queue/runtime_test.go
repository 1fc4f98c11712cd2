package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/riverbus/envelope/internal/esb/handler"
	"github.com/riverbus/envelope/internal/esb/message"
)

func waitForCount(t *testing.T, q *MessageQueue, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		n, err := q.GetCountAsync()
		require.NoError(t, err)
		if n == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	n, _ := q.GetCountAsync()
	t.Fatalf("timed out waiting for count=%d, last observed %d", want, n)
}

func testRC() RuntimeContext {
	return RuntimeContext{Log: zerolog.Nop()}
}

// Scenario 1: FIFO happy path.
func TestScenarioFIFOHappyPath(t *testing.T) {
	h := handler.Func(func(ctx context.Context, m *message.Message, hctx *handler.Context) handler.Result {
		return handler.Completed()
	})
	q := New(Definition{QueueName: "orders", QueueType: TypeSequentialFIFO, HandleMessage: h}, testRC(), nil)
	defer q.Dispose()

	m1 := message.NewMessage("p", nil)
	m2 := message.NewMessage("p", nil)
	require.NoError(t, q.EnqueueAsync(context.Background(), m1, nil, true))
	require.NoError(t, q.EnqueueAsync(context.Background(), m2, nil, true))

	waitForCount(t, q, 0, time.Second)
}

// Scenario 2: retry then succeed.
func TestScenarioRetryThenSucceed(t *testing.T) {
	var calls int32
	h := handler.Func(func(ctx context.Context, m *message.Message, hctx *handler.Context) handler.Result {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			return handler.Retry(0)
		}
		return handler.Completed()
	})
	def := Definition{
		QueueName:     "jobs",
		QueueType:     TypeSequentialFIFO,
		HandleMessage: h,
		ErrorHandling: &message.ErrorHandling{MaxRetries: 2, Interval: time.Millisecond},
	}
	q := New(def, testRC(), nil)
	defer q.Dispose()

	m := message.NewMessage("p", nil)
	require.NoError(t, q.EnqueueAsync(context.Background(), m, nil, true))

	waitForCount(t, q, 0, time.Second)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

// Scenario 3: expiry routes to the fault queue, never reaching the handler.
func TestScenarioExpiryToFaultQueue(t *testing.T) {
	var handlerCalled atomic.Bool
	faultHandler := handler.Func(func(ctx context.Context, m *message.Message, hctx *handler.Context) handler.Result {
		return handler.Completed()
	})
	fault := New(Definition{QueueName: "fault", QueueType: TypeSequentialFIFO, HandleMessage: faultHandler, IsPull: true}, testRC(), nil)
	defer fault.Dispose()

	h := handler.Func(func(ctx context.Context, m *message.Message, hctx *handler.Context) handler.Result {
		handlerCalled.Store(true)
		return handler.Completed()
	})
	q := New(Definition{QueueName: "orders", QueueType: TypeSequentialFIFO, HandleMessage: h, FaultQueueName: "fault"}, testRC(), fault)
	defer q.Dispose()

	past := time.Now().Add(-time.Second)
	m := message.NewMessage("p", nil)
	m.TimeToLiveUTC = &past
	require.NoError(t, q.EnqueueAsync(context.Background(), m, nil, true))

	waitForCount(t, q, 0, time.Second)
	require.False(t, handlerCalled.Load(), "expired message must never reach the handler")

	n, err := fault.GetCountAsync()
	require.NoError(t, err)
	require.Equal(t, 1, n, "expired message must appear in the fault queue exactly once")
}

// Scenario 4: FIFO head suspended blocks the queue.
func TestScenarioFIFOHeadSuspended(t *testing.T) {
	var secondCalled atomic.Bool
	h := handler.Func(func(ctx context.Context, m *message.Message, hctx *handler.Context) handler.Result {
		if m.Priority == 1 {
			secondCalled.Store(true)
			return handler.Completed()
		}
		return handler.Retry(0) // CanRetry will be false: MaxRetries 0
	})
	def := Definition{
		QueueName:     "fifo-suspend",
		QueueType:     TypeSequentialFIFO,
		HandleMessage: h,
		ErrorHandling: &message.ErrorHandling{MaxRetries: 0},
	}
	q := New(def, testRC(), nil)
	defer q.Dispose()

	m1 := message.NewMessage("p", nil)
	m2 := message.NewMessage("p", nil)
	m2.Priority = 1
	require.NoError(t, q.EnqueueAsync(context.Background(), m1, nil, true))
	require.NoError(t, q.EnqueueAsync(context.Background(), m2, nil, true))

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && q.Status() != StatusSuspended {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, StatusSuspended, q.Status())
	require.False(t, secondCalled.Load(), "second message must not be delivered while the head is suspended")

	n, err := q.GetCountAsync()
	require.NoError(t, err)
	require.Equal(t, 2, n, "neither message is removed: head is suspended in place, second never delivered")
}

// Scenario 6: disposed queue rejects every operation.
func TestScenarioDisposedQueue(t *testing.T) {
	q := New(Definition{QueueName: "q", QueueType: TypeSequentialFIFO, IsPull: true}, testRC(), nil)
	q.Dispose()

	err := q.EnqueueAsync(context.Background(), message.NewMessage("p", nil), nil, true)
	require.Error(t, err)

	_, err = q.GetCountAsync()
	require.Error(t, err)
}
