// Package nats adapts queue.Publisher onto a NATS subject, one subject per
// queue, so an external observer can tail diagnostic bus activity without
// coupling to the in-process event channel.
//
// Grounded on the pack's NATS event-publisher idiom: JSON-encode an
// envelope, set header metadata, publish by subject, never block the
// caller on a publish failure beyond logging it.
package nats

import (
	"encoding/json"
	"fmt"

	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/riverbus/envelope/internal/esb/queue"
)

// Publisher publishes queue.Event and queue.ErrorEvent as JSON to
// "esb.events.<queue>" and "esb.events.<queue>.error" respectively.
type Publisher struct {
	conn *natsgo.Conn
}

// New returns a Publisher backed by an already-connected NATS connection.
func New(conn *natsgo.Conn) *Publisher {
	return &Publisher{conn: conn}
}

func (p *Publisher) Publish(e queue.Event) {
	p.publish(fmt.Sprintf("esb.events.%s", e.QueueName), e)
}

func (p *Publisher) PublishError(e queue.ErrorEvent) {
	p.publish(fmt.Sprintf("esb.events.%s.error", e.QueueName), errorPayload{
		QueueName: e.QueueName,
		EventType: string(e.EventType),
		MessageID: e.MessageID.String(),
		Error:     e.Err.Error(),
		At:        e.At,
	})
}

type errorPayload struct {
	QueueName string `json:"queueName"`
	EventType string `json:"eventType"`
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
	At        any    `json:"at"`
}

// publish is diagnostic, best-effort: failures are logged, never returned,
// since an event-sink outage must never affect message outcome (§4.2).
func (p *Publisher) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("eventsink: marshal failed")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("eventsink: publish failed")
	}
}
