// Package binding persists exchange-to-queue bindings independently of
// the owning exchange definition, so an operator can list or revoke a
// binding without loading and rewriting the whole exchange document.
//
// Grounded on internal/platform/subscription's repository: per-entity
// Mongo collection, code/name lookups, active-only finders.
package binding

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

var ErrNotFound = errors.New("binding not found")

// Status is whether a binding is actively applied to the running bus.
type Status string

const (
	StatusActive   Status = "Active"
	StatusRevoked  Status = "Revoked"
)

// Binding is the persisted record of one exchange->queue route.
type Binding struct {
	ID           string    `bson:"_id" json:"id"`
	ExchangeName string    `bson:"exchangeName" json:"exchangeName"`
	QueueName    string    `bson:"queueName" json:"queueName"`
	RouteName    string    `bson:"routeName" json:"routeName"`
	Status       Status    `bson:"status" json:"status"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Repository provides access to persisted bindings.
type Repository struct {
	bindings *mongo.Collection
}

// NewRepository returns a Repository backed by the "bindings" collection.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{bindings: db.Collection("bindings")}
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Binding, error) {
	var b Binding
	if err := r.bindings.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *Repository) FindByExchange(ctx context.Context, exchangeName string) ([]*Binding, error) {
	return r.findByFilter(ctx, bson.M{"exchangeName": exchangeName})
}

func (r *Repository) FindActiveByExchange(ctx context.Context, exchangeName string) ([]*Binding, error) {
	return r.findByFilter(ctx, bson.M{"exchangeName": exchangeName, "status": StatusActive})
}

func (r *Repository) FindAll(ctx context.Context) ([]*Binding, error) {
	return r.findByFilter(ctx, bson.M{})
}

func (r *Repository) findByFilter(ctx context.Context, filter bson.M) ([]*Binding, error) {
	opts := options.Find().SetSort(bson.D{{Key: "exchangeName", Value: 1}, {Key: "queueName", Value: 1}})
	cursor, err := r.bindings.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*Binding
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) Insert(ctx context.Context, b *Binding) error {
	if b.ID == "" {
		b.ID = tsid.Generate()
	}
	if b.Status == "" {
		b.Status = StatusActive
	}
	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now

	_, err := r.bindings.InsertOne(ctx, b)
	return err
}

func (r *Repository) Revoke(ctx context.Context, id string) error {
	result, err := r.bindings.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": StatusRevoked, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.bindings.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// === HTTP handlers, mounted under /esb/bindings ===

func (r *Repository) ListHandler(w http.ResponseWriter, req *http.Request) {
	var (
		out []*Binding
		err error
	)
	if exchangeName := req.URL.Query().Get("exchange"); exchangeName != "" {
		out, err = r.FindByExchange(req.Context(), exchangeName)
	} else {
		out, err = r.FindAll(req.Context())
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Repository) CreateHandler(w http.ResponseWriter, req *http.Request) {
	var b Binding
	if err := json.NewDecoder(req.Body).Decode(&b); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := r.Insert(req.Context(), &b); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (r *Repository) RevokeHandler(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := r.Revoke(req.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "binding not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Repository) DeleteHandler(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := r.Delete(req.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "binding not found", http.StatusNotFound)
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
