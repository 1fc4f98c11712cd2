// Package leader provides a Redis-backed distributed lock used to elect a
// single active instance of a background process across a multi-instance
// deployment: the fault-queue sweeper (internal/esb/sweep) runs its scan
// loop only on whichever instance currently holds the lock.
package leader

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisElectorConfig controls lease timing for one lock name.
type RedisElectorConfig struct {
	LockName        string
	TTL             time.Duration
	RefreshInterval time.Duration
	RetryInterval   time.Duration
}

// DefaultRedisElectorConfig returns sane defaults for lockName: a 15s
// lease refreshed every 5s. RetryInterval is set to 2s, but the elector
// does not read it: while the lock is held elsewhere, acquisition is
// retried on the same RefreshInterval tick.
func DefaultRedisElectorConfig(lockName string) RedisElectorConfig {
	return RedisElectorConfig{
		LockName:        lockName,
		TTL:             15 * time.Second,
		RefreshInterval: 5 * time.Second,
		RetryInterval:   2 * time.Second,
	}
}

// RedisLeaderElector holds a single distributed lock (SET NX PX, renewed
// on a Lua-guarded compare-and-refresh) and calls back when this instance
// becomes or stops being the leader.
type RedisLeaderElector struct {
	client *redis.Client
	cfg    RedisElectorConfig
	token  string

	mu       sync.Mutex
	isLeader bool
	onBecome func()
	onLose   func()

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisLeaderElector constructs an elector that has not started
// competing for the lock yet; call Start to begin.
func NewRedisLeaderElector(client *redis.Client, cfg RedisElectorConfig) *RedisLeaderElector {
	return &RedisLeaderElector{
		client: client,
		cfg:    cfg,
		token:  uuid.NewString(),
	}
}

// OnBecomeLeader registers a callback invoked (from the elector's own
// goroutine) whenever this instance acquires the lock.
func (e *RedisLeaderElector) OnBecomeLeader(fn func()) { e.onBecome = fn }

// OnLoseLeadership registers a callback invoked whenever this instance
// loses the lock, including on Stop.
func (e *RedisLeaderElector) OnLoseLeadership(fn func()) { e.onLose = fn }

// IsLeader reports whether this instance currently holds the lock.
func (e *RedisLeaderElector) IsLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isLeader
}

// Start begins the acquire/refresh loop in the background. It returns
// once the loop goroutine has been launched; leadership is asynchronous.
func (e *RedisLeaderElector) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.run(runCtx)
	return nil
}

// Stop releases the lock, if held, and stops the background loop.
func (e *RedisLeaderElector) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.release()
}

func (e *RedisLeaderElector) run(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	e.tryAcquireOrRefresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tryAcquireOrRefresh(ctx)
		}
	}
}

func (e *RedisLeaderElector) tryAcquireOrRefresh(ctx context.Context) {
	if e.IsLeader() {
		e.refresh(ctx)
		return
	}
	e.acquire(ctx)
}

func (e *RedisLeaderElector) acquire(ctx context.Context) {
	ok, err := e.client.SetNX(ctx, e.cfg.LockName, e.token, e.cfg.TTL).Result()
	if err != nil {
		log.Error().Err(err).Str("lock", e.cfg.LockName).Msg("leader election: acquire failed")
		return
	}
	if ok {
		e.setLeader(true)
	}
}

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

func (e *RedisLeaderElector) refresh(ctx context.Context) {
	res, err := refreshScript.Run(ctx, e.client, []string{e.cfg.LockName}, e.token, e.cfg.TTL.Milliseconds()).Int()
	if err != nil {
		log.Error().Err(err).Str("lock", e.cfg.LockName).Msg("leader election: refresh failed")
		e.setLeader(false)
		return
	}
	if res == 0 {
		// Lost the key, most likely to a TTL expiry under load.
		e.setLeader(false)
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (e *RedisLeaderElector) release() {
	if !e.IsLeader() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := releaseScript.Run(ctx, e.client, []string{e.cfg.LockName}, e.token).Result(); err != nil {
		log.Warn().Err(err).Str("lock", e.cfg.LockName).Msg("leader election: release failed")
	}
	e.setLeader(false)
}

func (e *RedisLeaderElector) setLeader(leader bool) {
	e.mu.Lock()
	changed := e.isLeader != leader
	e.isLeader = leader
	e.mu.Unlock()

	if !changed {
		return
	}
	if leader && e.onBecome != nil {
		e.onBecome()
	}
	if !leader && e.onLose != nil {
		e.onLose()
	}
}
