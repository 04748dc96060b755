// Package status exposes the aggregate snapshot and reconciled subscriber
// views over HTTP and WebSocket.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/linkstat/internal/aggregate"
	"github.com/HerbHall/linkstat/internal/config"
	"github.com/HerbHall/linkstat/pkg/models"
)

// Roster reads the subscriber roster.
type Roster interface {
	List(ctx context.Context) ([]models.Subscriber, error)
	Get(ctx context.Context, id string) (*models.Subscriber, error)
}

// Config holds the modules.status section.
type Config struct {
	// RefreshRate is the sustained number of manual refreshes per second.
	RefreshRate float64 `mapstructure:"refresh_rate"`
	// RefreshBurst is the number of back-to-back manual refreshes allowed.
	RefreshBurst int `mapstructure:"refresh_burst"`
	// RefreshWait bounds how long POST /refresh waits for the cycle.
	RefreshWait time.Duration `mapstructure:"refresh_wait"`
}

// DefaultConfig returns the module defaults.
func DefaultConfig() Config {
	return Config{
		RefreshRate:  0.2,
		RefreshBurst: 2,
		RefreshWait:  10 * time.Second,
	}
}

const streamWriteTimeout = 10 * time.Second

// Module implements plugin.Plugin for the status API.
type Module struct {
	cache  *aggregate.Cache
	roster Roster
	cfg    Config

	limiter *rate.Limiter
	logger  *zap.Logger

	// stopCtx is cancelled on Stop so open streams close.
	stopCtx  context.Context
	stopFunc context.CancelFunc
	streams  sync.WaitGroup
}

// New creates the status module.
func New(cache *aggregate.Cache, roster Roster) *Module {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	return &Module{
		cache:    cache,
		roster:   roster,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RefreshRate), cfg.RefreshBurst),
		logger:   zap.NewNop(),
		stopCtx:  ctx,
		stopFunc: cancel,
	}
}

func (m *Module) Name() string    { return "status" }
func (m *Module) Version() string { return "0.1.0" }

func (m *Module) Init(cfg *config.Config, logger *zap.Logger) error {
	m.logger = logger
	c := DefaultConfig()
	if err := cfg.Unmarshal(&c); err != nil {
		return fmt.Errorf("decode status config: %w", err)
	}
	if c.RefreshRate <= 0 {
		return fmt.Errorf("refresh_rate must be positive, got %v", c.RefreshRate)
	}
	if c.RefreshBurst < 1 {
		c.RefreshBurst = 1
	}
	if c.RefreshWait <= 0 {
		c.RefreshWait = DefaultConfig().RefreshWait
	}
	m.cfg = c
	m.limiter = rate.NewLimiter(rate.Limit(c.RefreshRate), c.RefreshBurst)

	m.logger.Info("status module initialized",
		zap.Float64("refresh_rate", c.RefreshRate),
		zap.Int("refresh_burst", c.RefreshBurst),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("status module started")
	return nil
}

// Stop closes open streams and waits for their handlers to return.
func (m *Module) Stop() error {
	m.stopFunc()
	m.streams.Wait()
	m.logger.Info("status module stopped")
	return nil
}
