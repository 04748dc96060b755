package main

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/aggregate"
	"github.com/HerbHall/linkstat/internal/config"
	"github.com/HerbHall/linkstat/internal/fleet"
	"github.com/HerbHall/linkstat/internal/metrics"
	"github.com/HerbHall/linkstat/internal/mqttpub"
	"github.com/HerbHall/linkstat/internal/plugin"
	"github.com/HerbHall/linkstat/internal/poller"
	"github.com/HerbHall/linkstat/internal/probe"
	"github.com/HerbHall/linkstat/internal/server"
	"github.com/HerbHall/linkstat/internal/services"
	"github.com/HerbHall/linkstat/internal/status"
	"github.com/HerbHall/linkstat/internal/store"
)

// pipeline is the assembled service: registry storage feeding the poller,
// the fleet orchestrator, the aggregate cache, and the modules serving it.
type pipeline struct {
	store    *store.SQLiteStore
	cache    *aggregate.Cache
	registry *plugin.Registry
	server   *server.Server
	logger   *zap.Logger
}

// openRegistry opens the database and applies the registry migrations.
func openRegistry(ctx context.Context, cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.New(cfg.GetString("database.path"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := services.Migrate(ctx, st); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}

func buildPipeline(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger *zap.Logger) (*pipeline, error) {
	st, err := openRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	devices := services.NewSQLiteDeviceRepository(st.DB())
	subscribers := services.NewSQLiteSubscriberRepository(st.DB())

	m := metrics.New(reg)

	pcfg := poller.DefaultConfig()
	if err := cfg.UnmarshalKey("poller", &pcfg); err != nil {
		st.Close()
		return nil, fmt.Errorf("decode poller config: %w", err)
	}
	devicePoller := poller.NewFromConfig(pcfg, devices, m, logger.Named("poller"))

	orchestrator := fleet.New(devicePoller, devices, logger.Named("fleet"),
		fleet.WithCeiling(cfg.GetDuration("poller.fleet_timeout")),
		fleet.WithMetrics(m),
	)

	ccfg := aggregate.DefaultConfig()
	if err := cfg.UnmarshalKey("cache", &ccfg); err != nil {
		st.Close()
		return nil, fmt.Errorf("decode cache config: %w", err)
	}
	cache := aggregate.New(orchestrator, ccfg, logger.Named("cache"), aggregate.WithMetrics(m))

	registry := plugin.NewRegistry(logger)
	modules := []plugin.Plugin{
		status.New(cache, subscribers),
		probe.New(devices),
		mqttpub.New(cache, mqttpub.WithMetrics(m)),
	}
	for _, p := range modules {
		if err := registry.Register(p); err != nil {
			st.Close()
			return nil, fmt.Errorf("register module: %w", err)
		}
	}
	if err := registry.InitAll(cfg); err != nil {
		st.Close()
		return nil, err
	}

	addr := net.JoinHostPort(cfg.GetString("server.host"), cfg.GetString("server.port"))
	srv := server.New(addr, registry, gatherer, logger,
		server.WithMaxConnections(cfg.GetInt("server.max_connections")))

	return &pipeline{
		store:    st,
		cache:    cache,
		registry: registry,
		server:   srv,
		logger:   logger,
	}, nil
}

// start begins periodic refresh and starts the modules.
func (p *pipeline) start(ctx context.Context) error {
	if err := p.cache.Start(ctx); err != nil {
		return fmt.Errorf("start cache: %w", err)
	}
	if err := p.registry.StartAll(ctx); err != nil {
		p.cache.Stop()
		return err
	}
	return nil
}

// stop shuts modules down before the cache and the database they read from.
func (p *pipeline) stop() {
	p.registry.StopAll()
	p.cache.Stop()
	if err := p.store.Close(); err != nil {
		p.logger.Warn("failed to close database", zap.Error(err))
	}
}
