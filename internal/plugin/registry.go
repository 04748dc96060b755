package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/config"
)

// Status describes a registered module for the modules endpoint.
type Status struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Enabled bool   `json:"enabled"`
}

// Registry manages the lifecycle of all registered modules.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
	enabled map[string]bool
	started []string
	logger  *zap.Logger
}

// NewRegistry creates a new module registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		enabled: make(map[string]bool),
		logger:  logger,
	}
}

// Register adds a module to the registry.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		return errors.New("module name must not be empty")
	}
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("module %q already registered", name)
	}

	r.plugins[name] = p
	r.order = append(r.order, name)
	r.logger.Info("module registered", zap.String("name", name), zap.String("version", p.Version()))
	return nil
}

// InitAll initializes every module whose modules.{name}.enabled flag is set.
// Disabled modules are neither started nor routed.
func (r *Registry) InitAll(cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		p := r.plugins[name]
		section := cfg.Sub("modules." + name)

		if !section.GetBool("enabled") {
			r.logger.Info("module disabled, skipping", zap.String("name", name))
			continue
		}

		r.logger.Info("initializing module", zap.String("name", name))
		if err := p.Init(section, r.logger.Named(name)); err != nil {
			return fmt.Errorf("failed to initialize module %q: %w", name, err)
		}
		r.enabled[name] = true
	}
	return nil
}

// StartAll starts all enabled modules. If one fails, the modules already
// started are stopped again.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if !r.enabled[name] {
			continue
		}
		r.logger.Info("starting module", zap.String("name", name))
		if err := r.plugins[name].Start(ctx); err != nil {
			r.stopStartedLocked()
			return fmt.Errorf("failed to start module %q: %w", name, err)
		}
		r.started = append(r.started, name)
	}
	return nil
}

// StopAll stops started modules in reverse order.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopStartedLocked()
}

func (r *Registry) stopStartedLocked() {
	for i := len(r.started) - 1; i >= 0; i-- {
		name := r.started[i]
		r.logger.Info("stopping module", zap.String("name", name))
		if err := r.plugins[name].Stop(); err != nil {
			r.logger.Error("failed to stop module", zap.String("name", name), zap.Error(err))
		}
	}
	r.started = nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Statuses lists every registered module in registration order.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Status, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, Status{
			Name:    name,
			Version: r.plugins[name].Version(),
			Enabled: r.enabled[name],
		})
	}
	return result
}

// AllRoutes returns the routes of every enabled module, keyed by module name.
func (r *Registry) AllRoutes() map[string][]Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]Route)
	for _, name := range r.order {
		if !r.enabled[name] {
			continue
		}
		if pr := r.plugins[name].Routes(); len(pr) > 0 {
			routes[name] = pr
		}
	}
	return routes
}
