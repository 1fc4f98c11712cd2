package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue metrics

	QueueMessagesEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esb",
			Subsystem: "queue",
			Name:      "messages_enqueued_total",
			Help:      "Total messages enqueued, by queue name",
		},
		[]string{"queue"},
	)

	QueueMessagesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esb",
			Subsystem: "queue",
			Name:      "messages_completed_total",
			Help:      "Total messages completed, by queue name",
		},
		[]string{"queue"},
	)

	QueueDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esb",
			Subsystem: "queue",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent inside a single handler invocation",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "esb",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of messages currently buffered in a queue",
		},
		[]string{"queue"},
	)

	QueueStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "esb",
			Subsystem: "queue",
			Name:      "status",
			Help:      "Administrative queue status (0=Running, 1=Suspended, 2=Terminated)",
		},
		[]string{"queue"},
	)

	QueueFaultRoutings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esb",
			Subsystem: "queue",
			Name:      "fault_routings_total",
			Help:      "Total messages routed to a fault queue",
		},
		[]string{"queue"},
	)

	// Handler metrics

	HandlerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esb",
			Subsystem: "handler",
			Name:      "invocations_total",
			Help:      "Total handler invocations, by outcome",
		},
		[]string{"queue", "outcome"},
	)

	HandlerPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esb",
			Subsystem: "handler",
			Name:      "panics_total",
			Help:      "Total handler panics recovered by the interceptor",
		},
		[]string{"queue"},
	)

	// Body provider metrics

	BodyStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esb",
			Subsystem: "bodystore",
			Name:      "operations_total",
			Help:      "Total body store operations, by backend and result",
		},
		[]string{"backend", "op", "result"},
	)

	// Orchestration metrics

	OrchestrationEventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esb",
			Subsystem: "orchestration",
			Name:      "events_handled_total",
			Help:      "Total new orchestration events stored, by orchestration key",
		},
		[]string{"definition"},
	)

	OrchestrationInstancesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "esb",
			Subsystem: "orchestration",
			Name:      "instances_active",
			Help:      "Number of orchestration instances currently waiting on an event",
		},
		[]string{"definition"},
	)

	// Fault sweeper metrics

	SweeperLeaderElectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "esb",
			Subsystem: "sweeper",
			Name:      "leader_election_state",
			Help:      "Fault sweeper leader election state (1=leader, 0=follower)",
		},
	)

	SweeperFaultQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "esb",
			Subsystem: "sweeper",
			Name:      "fault_queue_depth",
			Help:      "Depth of each fault queue as observed by the most recent sweep",
		},
		[]string{"fault_queue"},
	)

	// Circuit breaker metrics (body provider / orchestration sink I/O)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "esb",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"target"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esb",
			Subsystem: "breaker",
			Name:      "trips_total",
			Help:      "Total circuit breaker trip events",
		},
		[]string{"target"},
	)

	// Admin HTTP API metrics

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin API requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin API request duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// CircuitBreakerState constants, mirrored from sony/gobreaker's own enum
// so callers that only have this package imported can still label gauges.
const (
	CircuitBreakerClosed   = 0
	CircuitBreakerOpen     = 1
	CircuitBreakerHalfOpen = 2
)
