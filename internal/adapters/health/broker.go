// Package health checks connectivity to the backends the bus depends on
// (Mongo for the body store and platform repositories, Redis for leader
// election and caching, NATS for diagnostic event publication) so the admin
// API can report them without any one check affecting message dispatch.
package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// BackendType identifies one external dependency the bus may be wired to.
type BackendType string

const (
	BackendMongo    BackendType = "MONGO"
	BackendRedis    BackendType = "REDIS"
	BackendNATS     BackendType = "NATS"
	BackendEmbedded BackendType = "EMBEDDED"
)

// ConnectivityChecker performs a backend-specific liveness probe.
type ConnectivityChecker interface {
	CheckConnectivity(ctx context.Context) error
}

// BrokerHealthService tracks the liveness of one external dependency.
type BrokerHealthService struct {
	mu sync.RWMutex

	enabled     bool
	backendType BackendType
	checker     ConnectivityChecker
	lastCheck   time.Time
	lastResult  bool
	lastIssues  []string

	connectionAttempts  int64
	connectionSuccesses int64
	connectionFailures  int64
	available           atomic.Int32
}

func NewBrokerHealthService(enabled bool, backendType BackendType, checker ConnectivityChecker) *BrokerHealthService {
	svc := &BrokerHealthService{enabled: enabled, backendType: backendType, checker: checker}
	svc.available.Store(0)
	return svc
}

// CheckConnectivity runs one probe and records the result, returning any
// issues found (empty when healthy).
func (s *BrokerHealthService) CheckConnectivity() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return []string{}
	}

	atomic.AddInt64(&s.connectionAttempts, 1)
	s.lastCheck = time.Now()

	var issues []string
	var connected bool

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch s.backendType {
	case BackendEmbedded:
		connected = true
	default:
		if s.checker == nil {
			issues = append(issues, fmt.Sprintf("%s health checker not configured", s.backendType))
			break
		}
		if err := s.checker.CheckConnectivity(ctx); err != nil {
			log.Error().Err(err).Str("backend", string(s.backendType)).Msg("backend connectivity check failed")
			issues = append(issues, fmt.Sprintf("%s connectivity check failed: %v", s.backendType, err))
			break
		}
		connected = true
	}

	if connected {
		atomic.AddInt64(&s.connectionSuccesses, 1)
		s.available.Store(1)
	} else {
		atomic.AddInt64(&s.connectionFailures, 1)
		s.available.Store(0)
		if len(issues) == 0 {
			issues = append(issues, fmt.Sprintf("%s is not accessible", s.backendType))
		}
	}

	s.lastResult = connected
	s.lastIssues = issues
	return issues
}

func (s *BrokerHealthService) BackendType() BackendType { return s.backendType }

func (s *BrokerHealthService) IsAvailable() bool { return s.available.Load() == 1 }

func (s *BrokerHealthService) Metrics() (attempts, successes, failures int64) {
	return atomic.LoadInt64(&s.connectionAttempts),
		atomic.LoadInt64(&s.connectionSuccesses),
		atomic.LoadInt64(&s.connectionFailures)
}

func (s *BrokerHealthService) LastCheck() (time.Time, bool, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCheck, s.lastResult, s.lastIssues
}

// Registry aggregates BrokerHealthServices for every wired backend, for the
// admin API's single /esb/health endpoint.
type Registry struct {
	services map[BackendType]*BrokerHealthService
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[BackendType]*BrokerHealthService)}
}

func (r *Registry) Register(svc *BrokerHealthService) {
	r.services[svc.BackendType()] = svc
}

// CheckAll runs every registered check and returns the aggregate issue list.
func (r *Registry) CheckAll() map[BackendType][]string {
	out := make(map[BackendType][]string, len(r.services))
	for bt, svc := range r.services {
		out[bt] = svc.CheckConnectivity()
	}
	return out
}
