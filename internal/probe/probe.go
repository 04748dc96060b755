// Package probe pings registered devices on demand so operators can tell a
// dead host from a filtered API port when a poll reports timeout or
// unreachable.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/linkstat/internal/config"
	"github.com/HerbHall/linkstat/internal/plugin"
	"github.com/HerbHall/linkstat/internal/server"
	"github.com/HerbHall/linkstat/internal/services"
	"github.com/HerbHall/linkstat/pkg/models"
)

// Devices reads the device registry.
type Devices interface {
	List(ctx context.Context) ([]models.Device, error)
	Get(ctx context.Context, id string) (*models.Device, error)
}

// Config holds the modules.probe section.
type Config struct {
	Count         int           `mapstructure:"count"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Privileged    bool          `mapstructure:"privileged"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
}

// DefaultConfig returns the module defaults.
func DefaultConfig() Config {
	return Config{
		Count:         3,
		Timeout:       5 * time.Second,
		MaxConcurrent: 8,
	}
}

// Module implements plugin.Plugin for on-demand device probes.
type Module struct {
	devices Devices
	checker Checker
	cfg     Config
	logger  *zap.Logger
}

// Option configures a Module.
type Option func(*Module)

// WithChecker replaces the ICMP checker built in Init.
func WithChecker(c Checker) Option {
	return func(m *Module) { m.checker = c }
}

// New creates the probe module.
func New(devices Devices, opts ...Option) *Module {
	m := &Module{
		devices: devices,
		cfg:     DefaultConfig(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string    { return "probe" }
func (m *Module) Version() string { return "0.1.0" }

func (m *Module) Init(cfg *config.Config, logger *zap.Logger) error {
	m.logger = logger
	c := DefaultConfig()
	if err := cfg.Unmarshal(&c); err != nil {
		return fmt.Errorf("decode probe config: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 1
	}
	m.cfg = c
	if m.checker == nil {
		m.checker = NewICMPChecker(c.Timeout, c.Count, c.Privileged)
	}
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }
func (m *Module) Stop() error                   { return nil }

// Routes implements plugin.Plugin.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/devices", Handler: m.handleProbeAll},
		{Method: "POST", Path: "/devices/{id}", Handler: m.handleProbeDevice},
	}
}

// ProbeDevice pings one device's address.
func (m *Module) ProbeDevice(ctx context.Context, device models.Device) (*Result, error) {
	// Leave the pinger its own timeout plus slack before cancelling.
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout+time.Second)
	defer cancel()

	checked, err := m.checker.Check(ctx, device.Address)
	if err != nil {
		return nil, err
	}
	res := *checked
	res.DeviceID = device.ID
	res.LastPollError = device.ConnectionError
	m.logger.Debug("device probed",
		zap.String("device_id", device.ID),
		zap.String("target", device.Address),
		zap.Bool("reachable", res.Reachable),
		zap.Float64("latency_ms", res.LatencyMs),
	)
	return &res, nil
}

// ProbeAll pings every enabled device, at most MaxConcurrent at a time.
// Results follow registry order. A device whose address cannot be resolved
// gets a Result carrying the error.
func (m *Module) ProbeAll(ctx context.Context) ([]Result, error) {
	devices, err := m.devices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	enabled := make([]models.Device, 0, len(devices))
	for _, d := range devices {
		if d.Enabled {
			enabled = append(enabled, d)
		}
	}

	results := make([]Result, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrent)
	for i, d := range enabled {
		g.Go(func() error {
			res, err := m.ProbeDevice(gctx, d)
			if err != nil {
				res = &Result{
					DeviceID:      d.ID,
					Target:        d.Address,
					Error:         err.Error(),
					PacketLoss:    1.0,
					CheckedAt:     time.Now().UTC(),
					LastPollError: d.ConnectionError,
				}
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// handleProbeDevice pings one registered device.
//
//	@Summary		Probe device
//	@Description	Sends ICMP echo requests to the device address.
//	@Tags			probe
//	@Produce		json
//	@Param			id path string true "Device ID"
//	@Success		200 {object} Result
//	@Failure		404 {object} server.Problem
//	@Failure		422 {object} server.Problem
//	@Router			/probe/devices/{id} [post]
func (m *Module) handleProbeDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	device, err := m.devices.Get(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		server.NotFound(w, fmt.Sprintf("device %q not found", id), r.URL.Path)
		return
	}
	if err != nil {
		m.logger.Error("failed to get device", zap.String("device_id", id), zap.Error(err))
		server.InternalError(w, "failed to get device", r.URL.Path)
		return
	}

	res, err := m.ProbeDevice(r.Context(), *device)
	if err != nil {
		server.WriteProblem(w, server.Problem{
			Type:     server.ProblemTypeBadRequest,
			Title:    "Unprocessable Entity",
			Status:   http.StatusUnprocessableEntity,
			Detail:   err.Error(),
			Instance: r.URL.Path,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleProbeAll pings every enabled device.
//
//	@Summary		Probe fleet
//	@Tags			probe
//	@Produce		json
//	@Success		200 {array} Result
//	@Failure		500 {object} server.Problem
//	@Router			/probe/devices [post]
func (m *Module) handleProbeAll(w http.ResponseWriter, r *http.Request) {
	results, err := m.ProbeAll(r.Context())
	if err != nil {
		m.logger.Error("fleet probe failed", zap.Error(err))
		server.InternalError(w, "failed to list devices", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
