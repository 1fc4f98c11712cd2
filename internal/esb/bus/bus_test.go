package bus

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverbus/envelope/internal/esb/exchange"
	"github.com/riverbus/envelope/internal/esb/handler"
	"github.com/riverbus/envelope/internal/esb/message"
	"github.com/riverbus/envelope/internal/esb/queue"
)

func minimalConfig() Configuration {
	return Configuration{
		BusName:              "test-bus",
		DefaultClientMessage: "an error occurred",
		Queues:               []QueueConfig{{Name: "orders"}},
	}
}

func TestConfigurationValidateRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		cfg  Configuration
	}{
		{"missing bus name", Configuration{DefaultClientMessage: "x", Queues: []QueueConfig{{Name: "a"}}}},
		{"missing client message", Configuration{BusName: "x", Queues: []QueueConfig{{Name: "a"}}}},
		{"no queues or exchanges", Configuration{BusName: "x", DefaultClientMessage: "x"}},
		{"duplicate queue names", Configuration{BusName: "x", DefaultClientMessage: "x", Queues: []QueueConfig{{Name: "a"}, {Name: "a"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.cfg.Validate())
		})
	}
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	_, err := New(Configuration{}, nil, queue.NopPublisher{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRegisterQueueRejectsUnregisteredFaultQueue(t *testing.T) {
	b, err := New(minimalConfig(), nil, queue.NopPublisher{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = b.RegisterQueue(queue.Definition{QueueName: "orders", FaultQueueName: "orders.fault"})
	assert.Error(t, err)
}

func TestSendEnqueuesOntoRegisteredQueue(t *testing.T) {
	b, err := New(minimalConfig(), nil, queue.NopPublisher{}, zerolog.Nop())
	require.NoError(t, err)

	done := make(chan struct{}, 1)
	_, err = b.RegisterQueue(queue.Definition{
		QueueName: "orders",
		HandleMessage: handler.Func(func(ctx context.Context, msg *message.Message, hctx *handler.Context) handler.Result {
			done <- struct{}{}
			return handler.Completed()
		}),
	})
	require.NoError(t, err)

	id, err := b.Send(context.Background(), "orders", []byte(`{}`), "test", SendOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, id.String())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestSendToUnknownQueueReturnsErrorWhenRequested(t *testing.T) {
	b, err := New(minimalConfig(), nil, queue.NopPublisher{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = b.Send(context.Background(), "missing", nil, "test", SendOptions{ThrowNoHandlerException: true})
	assert.Error(t, err)
}

func TestSendToUnknownQueueIsSilentByDefault(t *testing.T) {
	b, err := New(minimalConfig(), nil, queue.NopPublisher{}, zerolog.Nop())
	require.NoError(t, err)

	id, err := b.Send(context.Background(), "missing", nil, "test", SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", id.String())
}

func TestPublishFansOutToBoundQueues(t *testing.T) {
	b, err := New(minimalConfig(), nil, queue.NopPublisher{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = b.RegisterQueue(queue.Definition{QueueName: "orders", HandleMessage: handler.Func(func(context.Context, *message.Message, *handler.Context) handler.Result {
		return handler.Completed()
	})})
	require.NoError(t, err)

	b.RegisterExchange(&exchange.Exchange{
		ExchangeName: "order-events",
		ExchangeType: exchange.TypeFanOut,
		Bindings:     []exchange.Binding{{QueueName: "orders"}},
	})

	_, err = b.Publish(context.Background(), "order-events", []byte(`{}`), "test", SendOptions{})
	require.NoError(t, err)

	q, ok := b.Queue("orders")
	require.True(t, ok)
	assert.Equal(t, queue.StatusRunning, q.Status())
}

func TestQueuesAndExchangesIntrospection(t *testing.T) {
	b, err := New(minimalConfig(), nil, queue.NopPublisher{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = b.RegisterQueue(queue.Definition{QueueName: "orders"})
	require.NoError(t, err)
	b.RegisterExchange(&exchange.Exchange{ExchangeName: "order-events", ExchangeType: exchange.TypeDirect})

	assert.Len(t, b.Queues(), 1)
	assert.Len(t, b.Exchanges(), 1)

	_, ok := b.Exchange("order-events")
	assert.True(t, ok)
	_, ok = b.Exchange("missing")
	assert.False(t, ok)
}
