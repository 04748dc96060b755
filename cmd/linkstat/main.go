package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/config"
	"github.com/HerbHall/linkstat/internal/version"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "seed":
		runSeed(args)
	case "version":
		fmt.Println(version.Info())
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve, seed, or version)\n", cmd)
		os.Exit(2)
	}
}

// newLogger builds a production logger, or a development one when
// log.development is set. log.level overrides the level either way.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.GetBool("log.development") {
		zcfg = zap.NewDevelopmentConfig()
	}
	if lvl := cfg.GetString("log.level"); lvl != "" {
		level, err := zap.ParseAtomicLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("linkstat starting", zap.String("version", version.Short()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := buildPipeline(ctx, cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger)
	if err != nil {
		logger.Fatal("failed to build service", zap.Error(err))
	}
	if err := p.start(ctx); err != nil {
		p.stop()
		logger.Fatal("failed to start modules", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- p.server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := p.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	p.stop()

	logger.Info("linkstat stopped")
}
