// Package aggregate holds the most recent fleet snapshot and decides when a
// new fleet cycle runs.
//
// Reads never block on the network: Get returns whatever was last published
// and, when it is older than the caller's staleness threshold, starts a
// background refresh. Concurrent refreshes share one in-flight cycle. A timer
// refreshes periodically while the cache is kept warm or has watchers.
package aggregate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/HerbHall/linkstat/internal/metrics"
	"github.com/HerbHall/linkstat/pkg/models"
)

const refreshKey = "fleet"

// Cycler produces a new snapshot. *fleet.Orchestrator satisfies it.
type Cycler interface {
	Cycle(ctx context.Context) (*models.Snapshot, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// Config holds cache settings decoded from the "cache" config section.
type Config struct {
	LiveStaleness   time.Duration `mapstructure:"live_staleness"`
	HealthStaleness time.Duration `mapstructure:"health_staleness"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	KeepWarm        bool          `mapstructure:"keep_warm"`
}

// DefaultConfig returns the cache defaults.
func DefaultConfig() Config {
	return Config{
		LiveStaleness:   30 * time.Second,
		HealthStaleness: 2 * time.Minute,
		RefreshInterval: 30 * time.Second,
		KeepWarm:        true,
	}
}

// Cache is the process-wide aggregate cache and refresh scheduler.
type Cache struct {
	cycler  Cycler
	cfg     Config
	clock   Clock
	metrics *metrics.Collectors
	logger  *zap.Logger

	current atomic.Pointer[models.Snapshot]
	group   singleflight.Group

	subMu   sync.Mutex
	subs    map[uint64]chan *models.Snapshot
	nextSub uint64

	loopMu     sync.Mutex
	watchers   int
	stopped    bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock used for staleness checks.
func WithClock(c Clock) Option {
	return func(cache *Cache) { cache.clock = c }
}

// WithMetrics enables cache metrics.
func WithMetrics(m *metrics.Collectors) Option {
	return func(cache *Cache) { cache.metrics = m }
}

// New creates a Cache. Nothing runs until Start, Acquire, or a read.
func New(cycler Cycler, cfg Config, logger *zap.Logger, opts ...Option) *Cache {
	defaults := DefaultConfig()
	if cfg.LiveStaleness <= 0 {
		cfg.LiveStaleness = defaults.LiveStaleness
	}
	if cfg.HealthStaleness <= 0 {
		cfg.HealthStaleness = defaults.HealthStaleness
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	c := &Cache{
		cycler: cycler,
		cfg:    cfg,
		clock:  wallClock{},
		logger: logger,
		subs:   make(map[uint64]chan *models.Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Cache) Config() Config { return c.cfg }

// Snapshot returns the last published snapshot, or nil before the first
// successful cycle. The returned value must not be modified.
func (c *Cache) Snapshot() *models.Snapshot {
	return c.current.Load()
}

// Get returns the last published snapshot immediately. If it is missing or
// older than staleness, a background refresh is started; the caller still
// gets the old value.
func (c *Cache) Get(staleness time.Duration) *models.Snapshot {
	snap := c.current.Load()
	if c.isStale(snap, staleness) {
		c.refreshInBackground()
	}
	return snap
}

// GetOrWait behaves like Get but waits for the first snapshot when none has
// been published yet.
func (c *Cache) GetOrWait(ctx context.Context, staleness time.Duration) (*models.Snapshot, error) {
	if c.current.Load() == nil {
		return c.Refresh(ctx)
	}
	return c.Get(staleness), nil
}

func (c *Cache) isStale(snap *models.Snapshot, staleness time.Duration) bool {
	return snap == nil || snap.Age(c.clock.Now()) > staleness
}

// Refresh forces a fleet cycle, joining one already in flight. The cycle is
// detached from ctx: cancelling ctx stops the wait, not the cycle, which
// still publishes. On cycle failure the previous snapshot is returned with
// the error.
func (c *Cache) Refresh(ctx context.Context) (*models.Snapshot, error) {
	cycleCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.runCycle(cycleCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.RefreshCoalesced()
		}
		if res.Err != nil {
			return c.current.Load(), res.Err
		}
		return res.Val.(*models.Snapshot), nil
	case <-ctx.Done():
		return c.current.Load(), ctx.Err()
	}
}

func (c *Cache) refreshInBackground() {
	go func() {
		_, _ = c.Refresh(context.Background())
	}()
}

func (c *Cache) runCycle(ctx context.Context) (*models.Snapshot, error) {
	snap, err := c.cycler.Cycle(ctx)
	if err != nil {
		c.logger.Error("fleet cycle failed, keeping previous snapshot", zap.Error(err))
		return nil, err
	}
	c.publish(snap)
	return snap, nil
}

func (c *Cache) publish(snap *models.Snapshot) {
	c.current.Store(snap)

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		// Keep only the newest value for slow subscribers.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Subscribe returns a channel receiving every newly published snapshot. Slow
// receivers only see the latest one. Call cancel to unsubscribe.
func (c *Cache) Subscribe() (<-chan *models.Snapshot, func()) {
	ch := make(chan *models.Snapshot, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// Start begins periodic refresh when KeepWarm is set. Otherwise the timer
// only runs while someone holds a watcher.
func (c *Cache) Start(_ context.Context) error {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	c.stopped = false
	if c.cfg.KeepWarm {
		c.startLoopLocked()
	}
	return nil
}

// Stop halts the timer. An in-flight cycle is allowed to finish.
func (c *Cache) Stop() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	c.stopped = true
	c.stopLoopLocked()
}

// Acquire registers a watcher, starting the timer if it is not running.
// The returned release function is idempotent.
func (c *Cache) Acquire() (release func()) {
	c.loopMu.Lock()
	c.watchers++
	c.metrics.SetWatchers(c.watchers)
	if !c.stopped {
		c.startLoopLocked()
	}
	c.loopMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(c.release)
	}
}

func (c *Cache) release() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	c.watchers--
	c.metrics.SetWatchers(c.watchers)
	if c.watchers == 0 && !c.cfg.KeepWarm {
		c.stopLoopLocked()
	}
}

// Watchers returns the number of active watchers.
func (c *Cache) Watchers() int {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.watchers
}

// Running reports whether the refresh timer is active.
func (c *Cache) Running() bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.loopCancel != nil
}

func (c *Cache) startLoopLocked() {
	if c.loopCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.loopCancel = cancel
	c.loopDone = done
	go c.run(ctx, done)
	c.logger.Debug("refresh timer started", zap.Duration("interval", c.cfg.RefreshInterval))
}

func (c *Cache) stopLoopLocked() {
	if c.loopCancel == nil {
		return
	}
	c.loopCancel()
	<-c.loopDone
	c.loopCancel = nil
	c.loopDone = nil
	c.logger.Debug("refresh timer stopped")
}

func (c *Cache) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if c.isStale(c.current.Load(), c.cfg.RefreshInterval) {
		c.tick(ctx)
	}

	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Cache) tick(ctx context.Context) {
	if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn("scheduled refresh failed", zap.Error(err))
	}
}
