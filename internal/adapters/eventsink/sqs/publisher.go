// Package sqs adapts queue.Publisher onto an SQS queue, used when a
// deployment already centralizes operational event fan-out through SQS
// rather than NATS. Grounded on the SendMessage/MessageAttributes
// construction in the pack's SQS client, generalized from "dispatch a
// job" to "publish a diagnostic event".
package sqs

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"

	"github.com/riverbus/envelope/internal/esb/queue"
)

// sqsSendAPI is the subset of *sqs.Client this publisher needs, narrowed
// for testability the way the pack's SQSClientAPI interface does.
type sqsSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends queue.Event and queue.ErrorEvent as JSON message bodies
// to a single SQS queue, tagged with an EventType message attribute.
type Publisher struct {
	client   sqsSendAPI
	queueURL string
}

// New returns a Publisher sending to queueURL through client.
func New(client sqsSendAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

func (p *Publisher) Publish(e queue.Event) {
	p.send(string(e.EventType), e)
}

func (p *Publisher) PublishError(e queue.ErrorEvent) {
	p.send(string(e.EventType)+".error", struct {
		queue.ErrorEvent
		Error string `json:"error"`
	}{ErrorEvent: e, Error: e.Err.Error()})
}

// send is diagnostic, best-effort: a publish failure is logged only, never
// surfaced to the dispatch loop (§4.2 — diagnostic events never influence
// message outcome).
func (p *Publisher) send(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Msg("eventsink/sqs: marshal failed")
		return
	}

	ctx := context.Background()
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"EventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventType),
			},
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("eventType", eventType).Msg("eventsink/sqs: send failed")
	}
}
