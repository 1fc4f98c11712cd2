// Package api wires the bus's admin HTTP surface: queue/exchange
// introspection, pause/resume, fault-queue visibility, and health — all
// read-mostly and diagnostic, never on the message dispatch path.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/riverbus/envelope/internal/adapters/health"
	"github.com/riverbus/envelope/internal/esb/bus"
	"github.com/riverbus/envelope/internal/esb/sweep"
	"github.com/riverbus/envelope/internal/esb/warning"
	"github.com/riverbus/envelope/internal/platform/audit"
	"github.com/riverbus/envelope/internal/platform/binding"
	"github.com/riverbus/envelope/internal/platform/exchangedef"
	"github.com/riverbus/envelope/internal/platform/queuedef"
)

// Deps collects everything the admin router exposes.
type Deps struct {
	Bus          *bus.Bus
	Sweeper      *sweep.Sweeper
	Health       *health.Registry
	Warnings     warning.Service
	QueueDefs    *queuedef.Repository
	ExchangeDefs *exchangedef.Repository
	Bindings     *binding.Repository
	Audit        *audit.Service
	JWTSecret    []byte
	Credentials  []Credentials
}

// NewRouter builds the chi router mounted at the admin API's root.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Handle("/metrics", promhttp.Handler())
	if len(d.Credentials) > 0 {
		r.Post("/auth/login", loginHandler(d.Credentials, d.JWTSecret))
	}

	r.Route("/esb", func(r chi.Router) {
		if len(d.JWTSecret) > 0 {
			r.Use(RequireBearerAuth(d.JWTSecret))
		}

		r.Get("/health", healthHandler(d.Health))
		r.Get("/queues", listQueuesHandler(d))
		r.Get("/queues/{name}", getQueueHandler(d))
		r.Get("/queues/{name}/fault", faultQueueDepthHandler(d))
		r.Post("/queues/{name}/suspend", suspendQueueHandler(d))
		r.Post("/queues/{name}/resume", resumeQueueHandler(d))
		r.Get("/exchanges", listExchangesHandler(d))
		r.Get("/fault-queue-counts", faultCountsHandler(d))

		r.Route("/warnings", func(r chi.Router) {
			r.Get("/", listWarningsHandler(d))
			r.Post("/{id}/ack", ackWarningHandler(d))
		})

		if d.QueueDefs != nil {
			r.Route("/queue-definitions", func(r chi.Router) {
				r.Get("/", d.QueueDefs.ListHandler)
				r.Post("/", d.QueueDefs.CreateHandler)
				r.Get("/{id}", d.QueueDefs.GetHandler)
				r.Put("/{id}", d.QueueDefs.UpdateHandler)
				r.Delete("/{id}", d.QueueDefs.DeleteHandler)
			})
		}
		if d.ExchangeDefs != nil {
			r.Route("/exchange-definitions", func(r chi.Router) {
				r.Get("/", d.ExchangeDefs.ListHandler)
				r.Post("/", d.ExchangeDefs.CreateHandler)
				r.Get("/{id}", d.ExchangeDefs.GetHandler)
				r.Delete("/{id}", d.ExchangeDefs.DeleteHandler)
			})
		}
		if d.Bindings != nil {
			r.Route("/bindings", func(r chi.Router) {
				r.Get("/", d.Bindings.ListHandler)
				r.Post("/", d.Bindings.CreateHandler)
				r.Post("/{id}/revoke", d.Bindings.RevokeHandler)
				r.Delete("/{id}", d.Bindings.DeleteHandler)
			})
		}
	})

	return r
}

func healthHandler(reg *health.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if reg == nil {
			WriteJSON(w, http.StatusOK, map[string]interface{}{})
			return
		}
		issues := reg.CheckAll()
		status := http.StatusOK
		for _, is := range issues {
			if len(is) > 0 {
				status = http.StatusServiceUnavailable
				break
			}
		}
		WriteJSON(w, status, issues)
	}
}

type queueView struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Depth  int    `json:"depth"`
}

func listQueuesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var out []queueView
		for _, q := range d.Bus.Queues() {
			depth, _ := q.GetCountAsync()
			out = append(out, queueView{Name: q.Name(), Status: string(q.Status()), Depth: depth})
		}
		WriteJSON(w, http.StatusOK, out)
	}
}

func getQueueHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		q, ok := d.Bus.Queue(name)
		if !ok {
			WriteNotFound(w, "queue not found")
			return
		}
		depth, _ := q.GetCountAsync()
		WriteJSON(w, http.StatusOK, queueView{Name: q.Name(), Status: string(q.Status()), Depth: depth})
	}
}

func faultQueueDepthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		q, ok := d.Bus.Queue(name)
		if !ok {
			WriteNotFound(w, "queue not found")
			return
		}
		faultName := q.FaultQueueName()
		if faultName == "" {
			WriteJSON(w, http.StatusOK, queueView{})
			return
		}
		fq, ok := d.Bus.Queue(faultName)
		if !ok {
			WriteNotFound(w, "fault queue not registered")
			return
		}
		depth, _ := fq.GetCountAsync()
		WriteJSON(w, http.StatusOK, queueView{Name: fq.Name(), Status: string(fq.Status()), Depth: depth})
	}
}

func suspendQueueHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		q, ok := d.Bus.Queue(name)
		if !ok {
			WriteNotFound(w, "queue not found")
			return
		}
		q.Suspend()
		if d.Audit != nil {
			d.Audit.LogUpdate(req.Context(), "queue", name, PrincipalFromContext(req.Context()), map[string]string{"action": "suspend"})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func resumeQueueHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		q, ok := d.Bus.Queue(name)
		if !ok {
			WriteNotFound(w, "queue not found")
			return
		}
		q.Resume()
		if d.Audit != nil {
			d.Audit.LogUpdate(req.Context(), "queue", name, PrincipalFromContext(req.Context()), map[string]string{"action": "resume"})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type exchangeView struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Bindings []string `json:"boundQueues"`
}

func listExchangesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var out []exchangeView
		for _, e := range d.Bus.Exchanges() {
			v := exchangeView{Name: e.ExchangeName, Type: string(e.ExchangeType)}
			for _, b := range e.Bindings {
				v.Bindings = append(v.Bindings, b.QueueName)
			}
			out = append(out, v)
		}
		WriteJSON(w, http.StatusOK, out)
	}
}

func faultCountsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if d.Sweeper == nil {
			WriteJSON(w, http.StatusOK, sweep.FaultCounts{})
			return
		}
		WriteJSON(w, http.StatusOK, d.Sweeper.LastCounts())
	}
}

func listWarningsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if d.Warnings == nil {
			WriteJSON(w, http.StatusOK, []any{})
			return
		}
		if sev := req.URL.Query().Get("severity"); sev != "" {
			WriteJSON(w, http.StatusOK, d.Warnings.GetWarningsBySeverity(sev))
			return
		}
		WriteJSON(w, http.StatusOK, d.Warnings.GetAllWarnings())
	}
}

func ackWarningHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if d.Warnings == nil {
			WriteNotFound(w, "warnings not enabled")
			return
		}
		id := chi.URLParam(req, "id")
		if !d.Warnings.AcknowledgeWarning(id) {
			WriteNotFound(w, "warning not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
