package nats

import (
	"encoding/json"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/require"

	"github.com/riverbus/envelope/internal/esb/queue"
)

// runEmbeddedServer starts an in-process NATS server on an ephemeral port,
// the same embedding approach the nats.go test suite itself uses, so the
// publisher is exercised against the real wire protocol rather than a mock
// connection.
func runEmbeddedServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := test.DefaultTestOptions
	opts.Port = -1
	srv := test.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestPublisherPublishesEventToSubject(t *testing.T) {
	srv := runEmbeddedServer(t)

	conn, err := natsgo.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	subscriber, err := natsgo.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(subscriber.Close)

	msgCh := make(chan *natsgo.Msg, 1)
	_, err = subscriber.ChanSubscribe("esb.events.orders", msgCh)
	require.NoError(t, err)
	require.NoError(t, subscriber.Flush())

	pub := New(conn)
	pub.Publish(queue.Event{QueueName: "orders", EventType: queue.EventOnMessage})

	select {
	case msg := <-msgCh:
		var got queue.Event
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		require.Equal(t, "orders", got.QueueName)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestPublisherPublishesErrorToErrorSubject(t *testing.T) {
	srv := runEmbeddedServer(t)

	conn, err := natsgo.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	subscriber, err := natsgo.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(subscriber.Close)

	msgCh := make(chan *natsgo.Msg, 1)
	_, err = subscriber.ChanSubscribe("esb.events.orders.error", msgCh)
	require.NoError(t, err)
	require.NoError(t, subscriber.Flush())

	pub := New(conn)
	pub.PublishError(queue.ErrorEvent{QueueName: "orders", EventType: queue.EventOnMessage, Err: errBoom})

	select {
	case msg := <-msgCh:
		var got errorPayload
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		require.Equal(t, "orders", got.QueueName)
		require.Equal(t, "boom", got.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published error message")
	}
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
