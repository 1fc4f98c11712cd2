package handler

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/riverbus/envelope/internal/common/metrics"
	"github.com/riverbus/envelope/internal/esb/message"
)

// Intercept wraps a single handler invocation with tracing, timeout,
// panic/error capture, and transaction rollback scheduling (§4.5). It
// never re-throws; every outcome flows through the returned Result,
// grounded on the same wrap-retry-classify shape the teacher's HTTP
// mediator uses for outbound calls, generalized here to an in-process
// call with no retry (retry is the dispatch loop's concern, not the
// interceptor's).
func Intercept(ctx context.Context, timeout time.Duration, h Handler, msg *message.Message, hctx *Context) (result Result) {
	requestType := "unknown"
	if msg != nil {
		requestType = reflect.TypeOf(msg).String()
	}
	start := time.Now()
	log.Debug().Str("requestType", requestType).Str("messageId", msg.MessageID.String()).Msg("Method_In")

	defer func() {
		log.Debug().Str("requestType", requestType).Dur("elapsed", time.Since(start)).Msg("Method_Out")
		metrics.QueueDispatchDuration.WithLabelValues(hctx.QueueName).Observe(time.Since(start).Seconds())
	}()

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resultCh := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				metrics.HandlerPanics.WithLabelValues(hctx.QueueName).Inc()
				res := Error("", fmt.Errorf("handler panic: %v", r))
				resultCh <- res
			}
		}()
		resultCh <- h.HandleAsync(callCtx, msg, hctx)
	}()

	select {
	case result = <-resultCh:
	case <-callCtx.Done():
		// Timeout yields the same outcome path as an unhandled handler
		// exception (§5 Cancellation & timeouts).
		result = Error("request timed out", callCtx.Err())
	}

	if result.HasErrors() {
		result.EnrichDefaults(msg.MessageID.String())
		if result.HasTransactionRollbackError() && hctx.Transaction != nil {
			hctx.Transaction.ScheduleRollback(result.Detail)
		}
	}

	return result
}
