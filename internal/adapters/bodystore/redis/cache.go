// Package redis adapts bodystore.Provider onto Redis, used when message
// bodies are short-lived and durability across a broker restart is not
// required — the common case for request/reply command bodies that are
// consumed within seconds of being written.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riverbus/envelope/internal/common/metrics"
	"github.com/riverbus/envelope/internal/esb/message"
	"github.com/riverbus/envelope/internal/esb/transaction"
)

// Provider implements bodystore.Provider as key/value pairs in Redis, with
// a fixed TTL so abandoned bodies expire instead of accumulating forever.
type Provider struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New returns a Provider that prefixes every key with prefix and expires
// entries after ttl.
func New(client *redis.Client, prefix string, ttl time.Duration) *Provider {
	return &Provider{client: client, prefix: prefix, ttl: ttl}
}

func (p *Provider) key(id string) string { return p.prefix + id }

// SaveToStorage writes every message's body under its own key.
func (p *Provider) SaveToStorage(ctx context.Context, msgs []*message.Message, tx *transaction.Controller) error {
	pipe := p.client.Pipeline()
	for _, m := range msgs {
		pipe.Set(ctx, p.key(m.MessageID.String()), m.Body, p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.BodyStoreOperations.WithLabelValues("redis", "save", "error").Inc()
		return err
	}
	metrics.BodyStoreOperations.WithLabelValues("redis", "save", "ok").Inc()
	return nil
}

// LoadFromStorage fetches the body for msg by id.
func (p *Provider) LoadFromStorage(ctx context.Context, msg *message.Message, tx *transaction.Controller) ([]byte, error) {
	body, err := p.client.Get(ctx, p.key(msg.MessageID.String())).Bytes()
	if err != nil {
		metrics.BodyStoreOperations.WithLabelValues("redis", "load", "error").Inc()
		return nil, err
	}
	metrics.BodyStoreOperations.WithLabelValues("redis", "load", "ok").Inc()
	return body, nil
}

// SaveReplyToStorage writes a reply body under the same key scheme.
func (p *Provider) SaveReplyToStorage(ctx context.Context, messageID string, reply []byte, tx *transaction.Controller) error {
	if err := p.client.Set(ctx, p.key(messageID), reply, p.ttl).Err(); err != nil {
		metrics.BodyStoreOperations.WithLabelValues("redis", "save_reply", "error").Inc()
		return err
	}
	metrics.BodyStoreOperations.WithLabelValues("redis", "save_reply", "ok").Inc()
	return nil
}
