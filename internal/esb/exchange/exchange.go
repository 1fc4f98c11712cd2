// Package exchange implements exchange-to-queue routing: direct,
// fan-out, and header-match dispatch from a publication to the set of
// bound queue names (§4.3).
package exchange

// Type selects the routing algorithm an exchange applies.
type Type string

const (
	TypeDirect Type = "Direct"
	TypeFanOut Type = "FanOut"
	TypeHeaders Type = "Headers"
)

// HeadersMatch selects conjunction (All) or disjunction (Any) semantics
// for Headers-type exchanges.
type HeadersMatch string

const (
	MatchAll HeadersMatch = "All"
	MatchAny HeadersMatch = "Any"
)

// Binding pairs a target queue name with a route name (Direct) or is
// matched purely by the exchange's Headers/HeadersMatch (Headers, FanOut
// ignores RouteName entirely). Bindings are visited in insertion order.
type Binding struct {
	QueueName string
	RouteName string
}

// Exchange is a named routing point consulting its bindings to select
// target queues for a publication.
type Exchange struct {
	ExchangeName string
	ExchangeType Type
	Bindings     []Binding
	Headers      map[string]string
	HeadersMatch HeadersMatch
}

// Route resolves the target queue names for a publication with the given
// routing key and headers. The runtime deduplicates by queue id before
// dispatch even though a queue bound multiple times is visited once per
// binding here (§4.3 "Tie-break").
func (e *Exchange) Route(routingKey string, headers map[string]string) []string {
	switch e.ExchangeType {
	case TypeFanOut:
		names := make([]string, len(e.Bindings))
		for i, b := range e.Bindings {
			names[i] = b.QueueName
		}
		return names

	case TypeHeaders:
		if !matchHeaders(headers, e.Headers, e.HeadersMatch) {
			return nil
		}
		names := make([]string, len(e.Bindings))
		for i, b := range e.Bindings {
			names[i] = b.QueueName
		}
		return names

	default: // TypeDirect
		var names []string
		for _, b := range e.Bindings {
			if b.RouteName == routingKey {
				names = append(names, b.QueueName)
			}
		}
		return names
	}
}

// matchHeaders implements §4.3's Headers-exchange matching rule: All is
// logical conjunction, Any is logical disjunction, exact key and value
// equality, and empty message or router headers never match (§8 invariant
// 8).
func matchHeaders(msgHeaders, routerHeaders map[string]string, mode HeadersMatch) bool {
	if len(msgHeaders) == 0 || len(routerHeaders) == 0 {
		return false
	}
	if mode == MatchAny {
		for k, v := range routerHeaders {
			if mv, ok := msgHeaders[k]; ok && mv == v {
				return true
			}
		}
		return false
	}
	// MatchAll
	for k, v := range routerHeaders {
		mv, ok := msgHeaders[k]
		if !ok || mv != v {
			return false
		}
	}
	return true
}

// Router maps exchange names to Exchange definitions and resolves a
// publication to a deduplicated set of target queue names.
type Router struct {
	exchanges map[string]*Exchange
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{exchanges: make(map[string]*Exchange)}
}

// Register installs or replaces an exchange definition.
func (r *Router) Register(e *Exchange) {
	r.exchanges[e.ExchangeName] = e
}

// Lookup returns the named exchange, if registered.
func (r *Router) Lookup(name string) (*Exchange, bool) {
	e, ok := r.exchanges[name]
	return e, ok
}

// All returns every registered exchange, for admin introspection.
func (r *Router) All() []*Exchange {
	out := make([]*Exchange, 0, len(r.exchanges))
	for _, e := range r.exchanges {
		out = append(out, e)
	}
	return out
}

// Publish resolves the exchange's bindings for this routing key/headers
// pair into a deduplicated list of target queue names, preserving the
// order bindings were first seen in.
func (r *Router) Publish(exchangeName, routingKey string, headers map[string]string) []string {
	e, ok := r.exchanges[exchangeName]
	if !ok {
		return nil
	}
	targets := e.Route(routingKey, headers)
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, name := range targets {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
