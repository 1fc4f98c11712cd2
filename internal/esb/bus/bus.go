// Package bus is the producer-facing façade: Send/Publish, queue and
// exchange registration, and the top-level configuration surface (§6).
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/riverbus/envelope/internal/esb/bodystore"
	"github.com/riverbus/envelope/internal/esb/esberr"
	"github.com/riverbus/envelope/internal/esb/exchange"
	"github.com/riverbus/envelope/internal/esb/message"
	"github.com/riverbus/envelope/internal/esb/queue"
	"github.com/riverbus/envelope/internal/esb/transaction"
)

// SendOptions mirrors the option set spec §6 enumerates for Send/Publish.
type SendOptions struct {
	ExchangeName               string
	ContentType                string
	ContentEncoding            string
	DisabledMessagePersistence bool
	IDSession                  *uuid.UUID
	RoutingKey                 string
	IsAsynchronousInvocation   bool
	ErrorHandling              *message.ErrorHandling
	Headers                    map[string]string
	Timeout                    *time.Duration
	IsCompressContent          bool
	IsEncryptContent           bool
	Priority                   int
	DisableFaultQueue          bool
	ThrowNoHandlerException    bool
}

// Bus wires the exchange router, the set of live queues, and the shared
// runtime context together, and is the only type producers interact with.
type Bus struct {
	cfg    Configuration
	router *exchange.Router
	queues map[queue.ID]*queue.MessageQueue
	rc     queue.RuntimeContext
}

// New validates cfg and constructs a Bus with no queues registered yet;
// call RegisterQueue/RegisterExchange to populate it.
func New(cfg Configuration, body bodystore.Provider, events queue.Publisher, log zerolog.Logger) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	esberr.DefaultClientMessage = cfg.DefaultClientMessage
	return &Bus{
		cfg:    cfg,
		router: exchange.NewRouter(),
		queues: make(map[queue.ID]*queue.MessageQueue),
		rc:     queue.RuntimeContext{Body: body, Events: events, Log: log},
	}, nil
}

// RegisterExchange installs an exchange definition.
func (b *Bus) RegisterExchange(e *exchange.Exchange) {
	b.router.Register(e)
}

// RegisterQueue constructs and installs a MessageQueue from def. faultQueueName,
// if non-empty, must name an already-registered queue.
func (b *Bus) RegisterQueue(def queue.Definition) (*queue.MessageQueue, error) {
	var fault *queue.MessageQueue
	if def.FaultQueueName != "" {
		f, ok := b.queues[queue.NewID(def.FaultQueueName)]
		if !ok {
			return nil, esberr.Argument("fault queue must be registered before the queues that reference it", nil)
		}
		fault = f
	}
	q := queue.New(def, b.rc, fault)
	b.queues[q.ID()] = q
	return q, nil
}

// Queue returns a registered queue by name.
func (b *Bus) Queue(name string) (*queue.MessageQueue, bool) {
	q, ok := b.queues[queue.NewID(name)]
	return q, ok
}

// Queues returns every registered queue, for admin introspection.
func (b *Bus) Queues() []*queue.MessageQueue {
	out := make([]*queue.MessageQueue, 0, len(b.queues))
	for _, q := range b.queues {
		out = append(out, q)
	}
	return out
}

// Exchange returns a registered exchange by name.
func (b *Bus) Exchange(name string) (*exchange.Exchange, bool) {
	return b.router.Lookup(name)
}

// Exchanges returns every registered exchange, for admin introspection.
func (b *Bus) Exchanges() []*exchange.Exchange {
	return b.router.All()
}

// Send publishes a request message directly to a named queue (command/query
// semantics: a single logical destination, not fan-out).
func (b *Bus) Send(ctx context.Context, queueName string, body []byte, publisherID string, opts SendOptions) (uuid.UUID, error) {
	q, ok := b.Queue(queueName)
	if !ok {
		if opts.ThrowNoHandlerException {
			return uuid.Nil, esberr.Argument("no queue registered for destination", nil)
		}
		return uuid.Nil, nil
	}
	m := buildMessage(body, publisherID, opts)
	m.SourceExchangeName = ""
	tx := transaction.New()
	if err := q.EnqueueAsync(ctx, m, tx, opts.IsAsynchronousInvocation); err != nil {
		return uuid.Nil, err
	}
	return m.MessageID, nil
}

// Publish fans an event out through the named exchange to every bound
// queue (deduplicated by queue id).
func (b *Bus) Publish(ctx context.Context, exchangeName string, body []byte, publisherID string, opts SendOptions) (uuid.UUID, error) {
	targets := b.router.Publish(exchangeName, opts.RoutingKey, opts.Headers)
	if len(targets) == 0 && opts.ThrowNoHandlerException {
		return uuid.Nil, esberr.Argument("no bound queue matched this publication", nil)
	}

	id := uuid.New()
	for _, name := range targets {
		q, ok := b.Queue(name)
		if !ok {
			continue
		}
		m := buildMessage(body, publisherID, opts)
		m.MessageID = id
		m.SourceExchangeName = exchangeName
		tx := transaction.New()
		if err := q.EnqueueAsync(ctx, m, tx, opts.IsAsynchronousInvocation); err != nil {
			b.rc.Log.Error().Err(err).Str("queue", name).Str("exchange", exchangeName).Msg("publish enqueue failed")
		}
	}
	return id, nil
}

func buildMessage(body []byte, publisherID string, opts SendOptions) *message.Message {
	m := message.NewMessage(publisherID, body)
	if opts.ExchangeName != "" {
		m.SourceExchangeName = opts.ExchangeName
	}
	if opts.ContentType != "" {
		m.ContentType = opts.ContentType
	}
	m.ContentEncoding = opts.ContentEncoding
	m.DisabledMessagePersistence = opts.DisabledMessagePersistence
	m.IDSession = opts.IDSession
	m.RoutingKey = opts.RoutingKey
	m.ErrorHandling = opts.ErrorHandling
	if opts.Headers != nil {
		m.Headers = opts.Headers
	}
	m.Timeout = opts.Timeout
	m.IsCompressedContent = opts.IsCompressContent
	m.IsEncryptedContent = opts.IsEncryptContent
	m.Priority = opts.Priority
	m.DisableFaultQueue = opts.DisableFaultQueue
	return m
}
