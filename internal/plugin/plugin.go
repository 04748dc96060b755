// Package plugin defines the module contract and the registry that drives
// module lifecycles and collects their HTTP routes.
package plugin

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/config"
)

// Route represents an HTTP route exposed by a module. Path is relative to
// /api/v1/{module} and may use ServeMux wildcards.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Plugin is implemented by every linkstat module.
type Plugin interface {
	// Name returns the module's unique identifier (e.g., "status", "probe").
	Name() string

	// Version returns the module's semantic version.
	Version() string

	// Init receives the module's config section (modules.{name}) and a
	// logger named after the module.
	Init(cfg *config.Config, logger *zap.Logger) error

	// Start begins background work.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the module.
	Stop() error

	// Routes returns the HTTP routes this module exposes.
	Routes() []Route
}
