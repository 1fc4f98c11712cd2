// Package queuedef persists queue definitions: the admin API reads and
// writes through this repository. The running bus is not built from these
// records; cmd/busdemo registers its queues from the TOML configuration.
//
// Grounded on internal/platform/dispatchpool's repository shape: a single
// Mongo collection, tsid-generated ids, status-filtered finders, and a
// thin chi handler set over the same CRUD surface.
package queuedef

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/riverbus/envelope/internal/common/tsid"
)

var (
	ErrNotFound      = errors.New("queue definition not found")
	ErrDuplicateName = errors.New("queue name already exists")
)

// Status is the administrative status of a persisted queue definition,
// independent of the in-memory queue.Status of a running MessageQueue.
type Status string

const (
	StatusActive   Status = "Active"
	StatusDisabled Status = "Disabled"
	StatusArchived Status = "Archived"
)

// Definition is the persisted, wire-facing description of a queue. It
// mirrors queue.Definition's configuration fields but drops HandleMessage,
// which has no serializable form and is wired by the process that owns
// the handler.
type Definition struct {
	ID                       string        `bson:"_id" json:"id"`
	QueueName                string        `bson:"queueName" json:"queueName"`
	QueueType                string        `bson:"queueType" json:"queueType"`
	IsPull                   bool          `bson:"isPull" json:"isPull"`
	MaxSize                  int           `bson:"maxSize" json:"maxSize"`
	DefaultProcessingTimeout time.Duration `bson:"defaultProcessingTimeout" json:"defaultProcessingTimeout"`
	FetchInterval            time.Duration `bson:"fetchInterval" json:"fetchInterval"`
	IsFaultQueue             bool          `bson:"isFaultQueue" json:"isFaultQueue"`
	FaultQueueName           string        `bson:"faultQueueName" json:"faultQueueName"`
	MaxRetries               int           `bson:"maxRetries" json:"maxRetries"`
	RetryInterval            time.Duration `bson:"retryInterval" json:"retryInterval"`
	Status                   Status        `bson:"status" json:"status"`
	CreatedAt                time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt                time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Repository provides access to persisted queue definitions.
type Repository struct {
	defs *mongo.Collection
}

// NewRepository returns a Repository backed by the "queue_definitions"
// collection.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{defs: db.Collection("queue_definitions")}
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Definition, error) {
	var d Definition
	if err := r.defs.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) FindByName(ctx context.Context, name string) (*Definition, error) {
	var d Definition
	if err := r.defs.FindOne(ctx, bson.M{"queueName": name}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) FindAllActive(ctx context.Context) ([]*Definition, error) {
	return r.findByFilter(ctx, bson.M{"status": StatusActive})
}

func (r *Repository) FindAll(ctx context.Context) ([]*Definition, error) {
	return r.findByFilter(ctx, bson.M{})
}

func (r *Repository) findByFilter(ctx context.Context, filter bson.M) ([]*Definition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "queueName", Value: 1}})
	cursor, err := r.defs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var defs []*Definition
	if err := cursor.All(ctx, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *Repository) Insert(ctx context.Context, d *Definition) error {
	if d.ID == "" {
		d.ID = tsid.Generate()
	}
	if d.Status == "" {
		d.Status = StatusActive
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now

	_, err := r.defs.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateName
	}
	return err
}

func (r *Repository) Update(ctx context.Context, d *Definition) error {
	d.UpdatedAt = time.Now()
	result, err := r.defs.ReplaceOne(ctx, bson.M{"_id": d.ID}, d)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetStatus(ctx context.Context, id string, status Status) error {
	result, err := r.defs.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.defs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// === HTTP handlers, mounted under /esb/queue-definitions ===

func (r *Repository) ListHandler(w http.ResponseWriter, req *http.Request) {
	defs, err := r.FindAll(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (r *Repository) CreateHandler(w http.ResponseWriter, req *http.Request) {
	var d Definition
	if err := json.NewDecoder(req.Body).Decode(&d); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := r.Insert(req.Context(), &d); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			http.Error(w, "queue name already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (r *Repository) GetHandler(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	d, err := r.FindByID(req.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "queue definition not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (r *Repository) UpdateHandler(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	var d Definition
	if err := json.NewDecoder(req.Body).Decode(&d); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	d.ID = id
	if err := r.Update(req.Context(), &d); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "queue definition not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (r *Repository) DeleteHandler(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := r.Delete(req.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "queue definition not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
