// Package handler implements the handler registry, per-invocation context,
// and the interceptor pipeline that wraps every handler call (§4.4, §4.5).
package handler

import (
	"context"
	"reflect"
	"sync"

	"github.com/riverbus/envelope/internal/esb/message"
	"github.com/riverbus/envelope/internal/esb/transaction"
)

// Context is the fresh, per-invocation value passed to a handler. It is
// never pooled across handlers (§4.4).
type Context struct {
	Message      *message.Message
	Transaction  *transaction.Controller
	TraceID      string
	QueueName    string
}

// Handler is the user-supplied processing function for a request-message
// type.
type Handler interface {
	HandleAsync(ctx context.Context, msg *message.Message, hctx *Context) Result
}

// Func adapts a plain function to the Handler interface.
type Func func(ctx context.Context, msg *message.Message, hctx *Context) Result

func (f Func) HandleAsync(ctx context.Context, msg *message.Message, hctx *Context) Result {
	return f(ctx, msg, hctx)
}

// processor memoizes everything the registry needs to dispatch to a
// handler once its request-message type has been resolved.
type processor struct {
	handler Handler
}

// Registry is the handler-processor cache: the only process-wide mutable
// state in the core (§9 DESIGN NOTES), concurrent-safe and append-only, no
// eviction. Backed by sync.Map exactly as the teacher's router/manager uses
// sync.Map for its pipeline/group caches.
type Registry struct {
	processors sync.Map // reflect.Type -> *processor
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register installs the handler for the given request-message type. Once
// installed, a type is never removed or replaced (append-only).
func (r *Registry) Register(requestType reflect.Type, h Handler) {
	r.processors.LoadOrStore(requestType, &processor{handler: h})
}

// RegisterFunc is a convenience wrapper around Register for function
// handlers.
func (r *Registry) RegisterFunc(requestType reflect.Type, f Func) {
	r.Register(requestType, f)
}

// Resolve looks up the handler for a request-message type. The first miss
// would be where construction happens in a richer DI-backed registry; here
// resolution is just the memoized lookup since handlers are supplied
// ready-made by Register.
func (r *Registry) Resolve(requestType reflect.Type) (Handler, bool) {
	v, ok := r.processors.Load(requestType)
	if !ok {
		return nil, false
	}
	return v.(*processor).handler, true
}
