package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverbus/envelope/internal/esb/message"
	"github.com/riverbus/envelope/internal/esb/transaction"
)

func newTestMessage() *message.Message {
	return &message.Message{MessageID: uuid.New()}
}

func TestInterceptReturnsHandlerResult(t *testing.T) {
	msg := newTestMessage()
	hctx := &Context{Message: msg, QueueName: "orders"}

	result := Intercept(context.Background(), time.Second, Func(func(ctx context.Context, msg *message.Message, hctx *Context) Result {
		return Completed()
	}), msg, hctx)

	assert.Equal(t, OutcomeCompleted, result.Outcome)
}

func TestInterceptTimesOutSlowHandler(t *testing.T) {
	msg := newTestMessage()
	hctx := &Context{Message: msg, QueueName: "orders"}

	result := Intercept(context.Background(), 10*time.Millisecond, Func(func(ctx context.Context, msg *message.Message, hctx *Context) Result {
		<-ctx.Done()
		return Completed()
	}), msg, hctx)

	assert.Equal(t, OutcomeError, result.Outcome)
	require.Error(t, result.Detail)
}

func TestInterceptRecoversFromPanic(t *testing.T) {
	msg := newTestMessage()
	hctx := &Context{Message: msg, QueueName: "orders"}

	result := Intercept(context.Background(), time.Second, Func(func(ctx context.Context, msg *message.Message, hctx *Context) Result {
		panic("boom")
	}), msg, hctx)

	assert.Equal(t, OutcomeError, result.Outcome)
	require.Error(t, result.Detail)
	assert.Contains(t, result.Detail.Error(), "boom")
}

func TestInterceptEnrichesDefaultsOnError(t *testing.T) {
	msg := newTestMessage()
	hctx := &Context{Message: msg, QueueName: "orders"}

	result := Intercept(context.Background(), time.Second, Func(func(ctx context.Context, msg *message.Message, hctx *Context) Result {
		return Error("", errors.New("downstream failed"))
	}), msg, hctx)

	assert.Equal(t, OutcomeError, result.Outcome)
	assert.NotEmpty(t, result.ClientMessage)
	require.NotNil(t, result.IDCommandQuery)
	assert.Equal(t, msg.MessageID.String(), *result.IDCommandQuery)
}

func TestInterceptSchedulesRollbackOnError(t *testing.T) {
	msg := newTestMessage()
	tx := transaction.New()
	hctx := &Context{Message: msg, QueueName: "orders", Transaction: tx}

	Intercept(context.Background(), time.Second, Func(func(ctx context.Context, msg *message.Message, hctx *Context) Result {
		return Error("failed", errors.New("boom"))
	}), msg, hctx)

	assert.True(t, tx.HasTransactionRollbackError())
}
