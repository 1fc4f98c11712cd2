package exchange

import "testing"

func TestDirectRouting(t *testing.T) {
	e := &Exchange{
		ExchangeName: "orders",
		ExchangeType: TypeDirect,
		Bindings: []Binding{
			{QueueName: "orders.created", RouteName: "created"},
			{QueueName: "orders.cancelled", RouteName: "cancelled"},
		},
	}
	got := e.Route("created", nil)
	if len(got) != 1 || got[0] != "orders.created" {
		t.Fatalf("expected [orders.created], got %v", got)
	}
	if got := e.Route("unknown", nil); len(got) != 0 {
		t.Fatalf("expected no match, got %v", got)
	}
}

func TestFanOutRouting(t *testing.T) {
	e := &Exchange{
		ExchangeType: TypeFanOut,
		Bindings: []Binding{
			{QueueName: "a"},
			{QueueName: "b"},
		},
	}
	got := e.Route("anything", nil)
	if len(got) != 2 {
		t.Fatalf("expected all bindings, got %v", got)
	}
}

func TestHeadersMatchAll(t *testing.T) {
	e := &Exchange{
		ExchangeType: TypeHeaders,
		HeadersMatch: MatchAll,
		Headers:      map[string]string{"a": "1", "b": "2"},
		Bindings:     []Binding{{QueueName: "q1"}},
	}

	cases := []struct {
		headers map[string]string
		match   bool
	}{
		{map[string]string{"a": "1", "b": "2", "c": "3"}, true},
		{map[string]string{"a": "1"}, false},
		{map[string]string{"a": "1", "b": "3"}, false},
		{nil, false},
	}
	for _, c := range cases {
		got := len(e.Route("", c.headers)) > 0
		if got != c.match {
			t.Errorf("headers=%v: expected match=%v, got %v", c.headers, c.match, got)
		}
	}
}

func TestHeadersMatchAny(t *testing.T) {
	e := &Exchange{
		ExchangeType: TypeHeaders,
		HeadersMatch: MatchAny,
		Headers:      map[string]string{"a": "1", "b": "2"},
		Bindings:     []Binding{{QueueName: "q1"}},
	}
	if len(e.Route("", map[string]string{"a": "1"})) == 0 {
		t.Fatal("expected match on partial header overlap")
	}
	if len(e.Route("", map[string]string{"z": "9"})) != 0 {
		t.Fatal("expected no match")
	}
	if len(e.Route("", map[string]string{})) != 0 {
		t.Fatal("empty message headers must never match")
	}
}

func TestEmptyRouterHeadersNeverMatch(t *testing.T) {
	e := &Exchange{
		ExchangeType: TypeHeaders,
		HeadersMatch: MatchAll,
		Headers:      map[string]string{},
		Bindings:     []Binding{{QueueName: "q1"}},
	}
	if len(e.Route("", map[string]string{"a": "1"})) != 0 {
		t.Fatal("empty router headers must never match")
	}
}

func TestRouterDeduplicatesByQueueID(t *testing.T) {
	r := NewRouter()
	r.Register(&Exchange{
		ExchangeName: "e",
		ExchangeType: TypeDirect,
		Bindings: []Binding{
			{QueueName: "q1", RouteName: "rk"},
			{QueueName: "q1", RouteName: "rk"},
			{QueueName: "q2", RouteName: "rk"},
		},
	})
	got := r.Publish("e", "rk", nil)
	if len(got) != 2 {
		t.Fatalf("expected deduplicated [q1 q2], got %v", got)
	}
}
