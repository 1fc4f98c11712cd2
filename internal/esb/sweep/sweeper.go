// Package sweep runs a background, leader-elected scan over a bus's fault
// queues so an operator is notified when dead-lettered messages pile up,
// without requiring every instance in a multi-instance deployment to poll
// redundantly.
//
// Grounded on the crash-recovery-then-poll shape of internal/outbox's
// processor: a single poller per elected leader, driven by a ticker, with
// Start/Stop lifecycle and Redis-backed leader election.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/riverbus/envelope/internal/common/leader"
	"github.com/riverbus/envelope/internal/esb/queue"
)

// Config controls the sweep cadence and leader-election lease.
type Config struct {
	PollInterval time.Duration
	LockName     string
	Elector      leader.RedisElectorConfig
}

// DefaultConfig returns a 30s poll cadence with the default elector lease.
func DefaultConfig() Config {
	return Config{
		PollInterval: 30 * time.Second,
		LockName:     "esb:sweeper:lock",
		Elector:      leader.DefaultRedisElectorConfig("esb:sweeper:lock"),
	}
}

// FaultCounts maps a fault queue's name to its current buffered count, as
// observed by the most recent sweep.
type FaultCounts map[string]int

// Sweeper periodically inspects a fixed set of fault queues and reports
// their depth. It never mutates queue contents; draining a fault queue is
// an operator action taken through the admin API, not this component.
type Sweeper struct {
	faultQueues map[string]*queue.MessageQueue
	interval    time.Duration
	onReport    func(FaultCounts)
	log         zerolog.Logger

	elector *leader.RedisLeaderElector

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	last FaultCounts
}

// New constructs a Sweeper over faultQueues, keyed by queue name. If
// redisClient is nil, the sweeper runs unconditionally on this instance
// (no leader election, suitable for single-instance deployments).
func New(cfg Config, faultQueues map[string]*queue.MessageQueue, redisClient *redis.Client, log zerolog.Logger, onReport func(FaultCounts)) *Sweeper {
	s := &Sweeper{
		faultQueues: faultQueues,
		interval:    cfg.PollInterval,
		onReport:    onReport,
		log:         log,
	}
	if redisClient != nil {
		s.elector = leader.NewRedisLeaderElector(redisClient, cfg.Elector)
	}
	return s
}

// Start launches the background scan loop. If leader election is
// configured, the loop only scans while this instance holds the lock.
func (s *Sweeper) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.elector != nil {
		s.elector.OnBecomeLeader(func() { s.log.Info().Msg("fault sweeper became leader") })
		s.elector.OnLoseLeadership(func() { s.log.Warn().Msg("fault sweeper lost leadership") })
		if err := s.elector.Start(runCtx); err != nil {
			return err
		}
	}

	s.wg.Add(1)
	go s.run(runCtx)
	return nil
}

// Stop halts the scan loop and releases leadership, if held.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if s.elector != nil {
		s.elector.Stop()
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	if s.elector != nil && !s.elector.IsLeader() {
		return
	}

	counts := make(FaultCounts, len(s.faultQueues))
	for name, q := range s.faultQueues {
		n, err := q.GetCountAsync()
		if err != nil {
			s.log.Warn().Err(err).Str("faultQueue", name).Msg("fault sweeper: count failed")
			continue
		}
		counts[name] = n
		if n > 0 {
			s.log.Warn().Str("faultQueue", name).Int("count", n).Msg("fault queue is non-empty")
		}
	}

	s.mu.Lock()
	s.last = counts
	s.mu.Unlock()

	if s.onReport != nil {
		s.onReport(counts)
	}
}

// LastCounts returns the counts observed by the most recent sweep.
func (s *Sweeper) LastCounts() FaultCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(FaultCounts, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}
