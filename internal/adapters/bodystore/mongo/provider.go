// Package mongo adapts bodystore.Provider onto a MongoDB collection,
// storing each message's body as a binary document keyed by message id.
//
// Grounded on internal/outbox's MongoRepository: one *mongo.Database handle,
// one collection per concern, bson.M filters, context-scoped calls.
package mongo

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/riverbus/envelope/internal/common/metrics"
	"github.com/riverbus/envelope/internal/esb/message"
	"github.com/riverbus/envelope/internal/esb/transaction"
)

// bodyDocument is the persisted shape of one message body.
type bodyDocument struct {
	ID        string    `bson:"_id"`
	Body      []byte    `bson:"body"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Provider implements bodystore.Provider against a single collection. Every
// Mongo call passes through a circuit breaker so a degraded body store trips
// open rather than piling up blocked dispatch-loop goroutines behind slow
// writes.
type Provider struct {
	collection *mongo.Collection
	breaker    *gobreaker.CircuitBreaker
}

// New returns a Provider backed by the named collection in db.
func New(db *mongo.Database, collectionName string) *Provider {
	p := &Provider{collection: db.Collection(collectionName)}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bodystore-mongo-" + collectionName,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(breakerStateValue(to)))
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerTrips.WithLabelValues(name).Inc()
			}
		},
	})
	return p
}

func breakerStateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitBreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitBreakerHalfOpen
	default:
		return metrics.CircuitBreakerClosed
	}
}

func (p *Provider) upsert(ctx context.Context, doc bodyDocument) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return p.collection.UpdateOne(ctx,
			bson.M{"_id": doc.ID},
			bson.M{"$set": doc},
			options.Update().SetUpsert(true),
		)
	})
	return err
}

// SaveToStorage upserts the body for every message in msgs. Transaction
// enrollment schedules nothing extra: Mongo's single-document writes are
// already atomic, so there is no separate commit step to enroll.
func (p *Provider) SaveToStorage(ctx context.Context, msgs []*message.Message, tx *transaction.Controller) error {
	for _, m := range msgs {
		doc := bodyDocument{ID: m.MessageID.String(), Body: m.Body, UpdatedAt: time.Now()}
		if err := p.upsert(ctx, doc); err != nil {
			metrics.BodyStoreOperations.WithLabelValues("mongo", "save", "error").Inc()
			return err
		}
	}
	metrics.BodyStoreOperations.WithLabelValues("mongo", "save", "ok").Inc()
	return nil
}

// LoadFromStorage fetches the body for msg by id.
func (p *Provider) LoadFromStorage(ctx context.Context, msg *message.Message, tx *transaction.Controller) ([]byte, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		var doc bodyDocument
		if err := p.collection.FindOne(ctx, bson.M{"_id": msg.MessageID.String()}).Decode(&doc); err != nil {
			return nil, err
		}
		return doc.Body, nil
	})
	if err != nil {
		metrics.BodyStoreOperations.WithLabelValues("mongo", "load", "error").Inc()
		return nil, err
	}
	metrics.BodyStoreOperations.WithLabelValues("mongo", "load", "ok").Inc()
	return result.([]byte), nil
}

// SaveReplyToStorage stores a reply body keyed by messageID, in the same
// collection as request bodies; a reply is just a body written later.
func (p *Provider) SaveReplyToStorage(ctx context.Context, messageID string, reply []byte, tx *transaction.Controller) error {
	doc := bodyDocument{ID: messageID, Body: reply, UpdatedAt: time.Now()}
	if err := p.upsert(ctx, doc); err != nil {
		metrics.BodyStoreOperations.WithLabelValues("mongo", "save_reply", "error").Inc()
		return err
	}
	metrics.BodyStoreOperations.WithLabelValues("mongo", "save_reply", "ok").Inc()
	return nil
}
