package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/riverbus/envelope/internal/common/tsid"
)

// AuditLog is one recorded admin-mutation event: a principal performed an
// operation against an entity, optionally carrying the changed data as a
// JSON blob (kept as a string rather than a nested document so entities
// of differing shapes share one collection without a schema per type).
type AuditLog struct {
	ID            string    `bson:"_id" json:"id"`
	EntityType    string    `bson:"entityType" json:"entityType"`
	EntityID      string    `bson:"entityId" json:"entityId"`
	Operation     string    `bson:"operation" json:"operation"`
	OperationJSON string    `bson:"operationJson,omitempty" json:"operationJson,omitempty"`
	PrincipalID   string    `bson:"principalId" json:"principalId"`
	PerformedAt   time.Time `bson:"performedAt" json:"performedAt"`
}

// Repository persists audit log entries.
type Repository struct {
	logs *mongo.Collection
}

// NewRepository returns a Repository backed by the "audit_logs" collection.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{logs: db.Collection("audit_logs")}
}

// Insert appends one audit log entry.
func (r *Repository) Insert(ctx context.Context, entry *AuditLog) error {
	if entry.ID == "" {
		entry.ID = tsid.Generate()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now()
	}
	_, err := r.logs.InsertOne(ctx, entry)
	return err
}

// FindByEntity returns every audit entry for one entity, newest first.
func (r *Repository) FindByEntity(ctx context.Context, entityType, entityID string) ([]*AuditLog, error) {
	filter := bson.M{"entityType": entityType, "entityId": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "performedAt", Value: -1}})

	cursor, err := r.logs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*AuditLog
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindRecent returns the most recent limit audit entries across all
// entities, newest first.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*AuditLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "performedAt", Value: -1}}).SetLimit(int64(limit))

	cursor, err := r.logs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*AuditLog
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
