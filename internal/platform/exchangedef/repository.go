// Package exchangedef persists exchange definitions — name, type, header
// match rule, and bindings — served through the admin API. The running bus
// does not read these records; cmd/busdemo registers its exchanges from
// the TOML configuration.
//
// Grounded on internal/platform/eventtype's repository, stripped of its
// schema-versioning machinery: exchange definitions have no payload
// schema to version, only a routing configuration.
package exchangedef

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
	ErrNotFound      = errors.New("exchange definition not found")
	ErrDuplicateName = errors.New("exchange name already exists")
)

// BindingRecord is a persisted binding of an exchange to a target queue.
type BindingRecord struct {
	QueueName string `bson:"queueName" json:"queueName"`
	RouteName string `bson:"routeName" json:"routeName"`
}

// Definition is the persisted, wire-facing description of an exchange.
type Definition struct {
	ID           string            `bson:"_id" json:"id"`
	ExchangeName string            `bson:"exchangeName" json:"exchangeName"`
	ExchangeType string            `bson:"exchangeType" json:"exchangeType"` // direct | fanout | headers
	HeadersMatch string            `bson:"headersMatch,omitempty" json:"headersMatch,omitempty"`
	Headers      map[string]string `bson:"headers,omitempty" json:"headers,omitempty"`
	Bindings     []BindingRecord   `bson:"bindings" json:"bindings"`
	CreatedAt    time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// Repository provides access to persisted exchange definitions.
type Repository struct {
	defs *mongo.Collection
}

// NewRepository returns a Repository backed by the "exchange_definitions"
// collection.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{defs: db.Collection("exchange_definitions")}
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
	if err := r.defs.FindOne(ctx, bson.M{"exchangeName": name}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) FindAll(ctx context.Context) ([]*Definition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "exchangeName", Value: 1}})
	cursor, err := r.defs.Find(ctx, bson.M{}, opts)
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

// AddBinding appends a binding to an exchange, deduplicating by queue name
// to match exchange.Router's binding-registration rule.
func (r *Repository) AddBinding(ctx context.Context, exchangeID string, b BindingRecord) error {
	d, err := r.FindByID(ctx, exchangeID)
	if err != nil {
		return err
	}
	for _, existing := range d.Bindings {
		if existing.QueueName == b.QueueName {
			return nil
		}
	}
	d.Bindings = append(d.Bindings, b)
	return r.Update(ctx, d)
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

// === HTTP handlers, mounted under /esb/exchange-definitions ===

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
			http.Error(w, "exchange name already exists", http.StatusConflict)
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
			http.Error(w, "exchange definition not found", http.StatusNotFound)
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
			http.Error(w, "exchange definition not found", http.StatusNotFound)
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
