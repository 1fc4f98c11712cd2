//go:build integration

package sqs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/riverbus/envelope/internal/esb/queue"
)

// Against a real localstack SQS queue rather than a hand-rolled mock,
// matching the pack's preference for exercising the actual AWS wire
// protocol over stubbing the SDK client.
func TestPublisherSendsToRealSQS(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ls, err := localstack.Run(ctx, "localstack/localstack:3.0.2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ls.Terminate(ctx) })

	mappedPort, err := ls.MappedPort(ctx, "4566/tcp")
	require.NoError(t, err)
	host, err := ls.Host(ctx)
	require.NoError(t, err)
	endpoint := "http://" + host + ":" + mappedPort.Port()

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	created, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String("esb-events")})
	require.NoError(t, err)

	pub := New(client, *created.QueueUrl)
	pub.Publish(queue.Event{EventType: queue.EventOnMessage, QueueName: "orders"})

	received, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:        created.QueueUrl,
		WaitTimeSeconds: 5,
		MaxNumberOfMessages: 1,
	})
	require.NoError(t, err)
	require.Len(t, received.Messages, 1)

	var got queue.Event
	require.NoError(t, json.Unmarshal([]byte(*received.Messages[0].Body), &got))
	require.Equal(t, "orders", got.QueueName)
}
