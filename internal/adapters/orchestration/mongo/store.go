// Package mongo persists orchestration events and instances against
// MongoDB, implementing orchestration.Store.
//
// Grounded on internal/adapters/bodystore/mongo: one collection per
// concern. Event idempotency comes from inserting with the event id as
// the document key and treating a duplicate-key error as "already
// stored", rather than from an application-level lock; instances are
// upserted by id.
package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/riverbus/envelope/internal/common/metrics"
	"github.com/riverbus/envelope/internal/esb/orchestration"
)

type eventDocument struct {
	ID               string    `bson:"_id"`
	OrchestrationKey string    `bson:"orchestrationKey"`
	MessageID        string    `bson:"messageId"`
	Payload          []byte    `bson:"payload"`
	SavedAt          time.Time `bson:"savedAt"`
}

type instanceDocument struct {
	ID               string `bson:"_id"`
	OrchestrationKey string `bson:"orchestrationKey"`
	DefinitionKey    string `bson:"definitionKey"`
	CurrentStep      int    `bson:"currentStep"`
	Status           string `bson:"status"`
}

// Store implements orchestration.Store against two Mongo collections.
type Store struct {
	events    *mongo.Collection
	instances *mongo.Collection
}

// New returns a Store backed by the "orchestration_events" and
// "orchestration_instances" collections in db. Callers are expected to
// have created a unique index on orchestration_events._id (the default
// for Mongo's _id field) so a duplicate event id is rejected rather than
// silently overwritten.
func New(db *mongo.Database) *Store {
	return &Store{
		events:    db.Collection("orchestration_events"),
		instances: db.Collection("orchestration_instances"),
	}
}

// SaveNewEvent inserts ev, returning created=false (not an error) when an
// event with the same id already exists — the idempotency contract
// orchestration.Sink.HandleEvent relies on.
func (s *Store) SaveNewEvent(ctx context.Context, ev orchestration.Event) (bool, error) {
	doc := eventDocument{
		ID:               ev.EventID,
		OrchestrationKey: ev.OrchestrationKey,
		MessageID:        ev.MessageID.String(),
		Payload:          ev.Payload,
		SavedAt:          time.Now(),
	}
	_, err := s.events.InsertOne(ctx, doc)
	if err == nil {
		metrics.OrchestrationEventsHandled.WithLabelValues(ev.OrchestrationKey).Inc()
		return true, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	return false, err
}

// InstancesForKey returns every persisted instance for an orchestration
// key. Instance.resume is left nil: a freshly loaded instance has no live
// goroutine waiting on it until the caller registers it with a Sink.
func (s *Store) InstancesForKey(ctx context.Context, key string) ([]*orchestration.Instance, error) {
	cursor, err := s.instances.Find(ctx, bson.M{"orchestrationKey": key})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []instanceDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*orchestration.Instance, 0, len(docs))
	for _, d := range docs {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			continue
		}
		out = append(out, &orchestration.Instance{
			ID:               id,
			OrchestrationKey: d.OrchestrationKey,
			DefinitionKey:    d.DefinitionKey,
			CurrentStep:      orchestration.StepID(d.CurrentStep),
			Status:           orchestration.InstanceStatus(d.Status),
		})
	}
	return out, nil
}

// SaveInstance upserts an instance's current state.
func (s *Store) SaveInstance(ctx context.Context, inst *orchestration.Instance) error {
	doc := instanceDocument{
		ID:               inst.ID.String(),
		OrchestrationKey: inst.OrchestrationKey,
		DefinitionKey:    inst.DefinitionKey,
		CurrentStep:      int(inst.CurrentStep),
		Status:           string(inst.Status),
	}
	_, err := s.instances.UpdateOne(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	return err
}
