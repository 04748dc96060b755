// Package poller queries a single access server for its active sessions and
// turns every failure into a classified Outcome value.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/metrics"
	"github.com/HerbHall/linkstat/pkg/models"
)

const (
	// DefaultTimeout bounds one device query.
	DefaultTimeout = 15 * time.Second

	recordTimeout = 5 * time.Second
)

// Adapter translates one device family's native session listing into the
// canonical Session shape. Implementations must honour ctx.
type Adapter interface {
	ActiveSessions(ctx context.Context, device models.Device) ([]models.Session, error)
}

// Recorder persists the diagnostic fields written after every poll attempt.
type Recorder interface {
	RecordPoll(ctx context.Context, id string, checkedAt time.Time, connErr string) error
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Outcome is the result of polling one device: either Sessions (possibly
// empty) or Err, never both.
type Outcome struct {
	DeviceID  string
	Sessions  []models.Session
	Err       *PollError
	CheckedAt time.Time
	Duration  time.Duration
}

// OK reports whether the poll succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Config holds poller settings decoded from the "poller" config section.
type Config struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	RouterOS RESTConfig    `mapstructure:"routeros"`
	SNMP     SNMPConfig    `mapstructure:"snmp"`
}

// DefaultConfig returns the poller defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:  DefaultTimeout,
		RouterOS: RESTConfig{Scheme: "https", InsecureSkipVerify: true},
		SNMP:     SNMPConfig{Retries: 1},
	}
}

// DevicePoller polls one device at a time through the adapter registered for
// the device's kind.
type DevicePoller struct {
	adapters map[models.DeviceKind]Adapter
	timeout  time.Duration
	recorder Recorder
	clock    Clock
	metrics  *metrics.Collectors
	logger   *zap.Logger
}

// Option configures a DevicePoller.
type Option func(*DevicePoller)

// WithAdapter registers the adapter used for devices of kind.
func WithAdapter(kind models.DeviceKind, a Adapter) Option {
	return func(p *DevicePoller) { p.adapters[kind] = a }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *DevicePoller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRecorder sets where poll diagnostics are written.
func WithRecorder(r Recorder) Option {
	return func(p *DevicePoller) { p.recorder = r }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *DevicePoller) { p.clock = c }
}

// WithMetrics enables per-device poll metrics.
func WithMetrics(m *metrics.Collectors) Option {
	return func(p *DevicePoller) { p.metrics = m }
}

// New creates a DevicePoller with no adapters registered unless supplied
// through options.
func New(logger *zap.Logger, opts ...Option) *DevicePoller {
	p := &DevicePoller{
		adapters: make(map[models.DeviceKind]Adapter),
		timeout:  DefaultTimeout,
		clock:    realClock{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates a DevicePoller with the RouterOS REST and SNMP
// adapters registered.
func NewFromConfig(cfg Config, recorder Recorder, m *metrics.Collectors, logger *zap.Logger) *DevicePoller {
	return New(logger,
		WithTimeout(cfg.Timeout),
		WithRecorder(recorder),
		WithMetrics(m),
		WithAdapter(models.DeviceKindRouterOSREST, NewRouterOSREST(cfg.RouterOS)),
		WithAdapter(models.DeviceKindRouterOSSNMP, NewRouterOSSNMP(cfg.SNMP)),
	)
}

type adapterResult struct {
	sessions []models.Session
	err      error
}

var errAdapterPanic = errors.New("adapter panic")

// Poll queries device for its active sessions. It does not check
// device.Enabled; callers filter disabled devices first. Poll always returns
// an Outcome and records LastCheckedAt/ConnectionError through the Recorder.
func (p *DevicePoller) Poll(ctx context.Context, device models.Device) Outcome {
	start := p.clock.Now()
	out := Outcome{DeviceID: device.ID}

	sessions, err := p.query(ctx, device)
	if err != nil {
		out.Err = Classify(err)
	} else {
		out.Sessions = tagSessions(sessions, device)
	}

	out.CheckedAt = p.clock.Now()
	out.Duration = out.CheckedAt.Sub(start)

	p.record(ctx, device, out)
	return out
}

// query runs the adapter in its own goroutine so the timeout holds even if
// the adapter ignores ctx.
func (p *DevicePoller) query(ctx context.Context, device models.Device) ([]models.Session, error) {
	kind := device.Kind
	if kind == "" {
		kind = models.DeviceKindRouterOSREST
	}
	adapter, ok := p.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedKind, device.Kind)
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan adapterResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- adapterResult{err: fmt.Errorf("%w: %v", errAdapterPanic, r)}
			}
		}()
		sessions, err := adapter.ActiveSessions(pollCtx, device)
		done <- adapterResult{sessions: sessions, err: err}
	}()

	select {
	case res := <-done:
		return res.sessions, res.err
	case <-pollCtx.Done():
		return nil, fmt.Errorf("poll %s: %w", device.Address, pollCtx.Err())
	}
}

func (p *DevicePoller) record(ctx context.Context, device models.Device, out Outcome) {
	reason := ""
	connErr := ""
	if out.Err != nil {
		reason = string(out.Err.Reason)
		connErr = out.Err.Message
		p.logger.Warn("device poll failed",
			zap.String("device_id", device.ID),
			zap.String("device", device.Name),
			zap.String("reason", reason),
			zap.Error(out.Err.Err),
		)
	} else {
		p.logger.Debug("device poll completed",
			zap.String("device_id", device.ID),
			zap.Int("sessions", len(out.Sessions)),
			zap.Duration("took", out.Duration),
		)
	}
	p.metrics.ObserveDevicePoll(device.ID, reason, out.Duration, len(out.Sessions))

	if p.recorder == nil {
		return
	}
	// The write must land even when the caller has gone away.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := p.recorder.RecordPoll(recCtx, device.ID, out.CheckedAt, connErr); err != nil {
		p.logger.Warn("failed to record poll result",
			zap.String("device_id", device.ID),
			zap.Error(err),
		)
	}
}

// tagSessions stamps each session with its owning device. A nil slice
// becomes an empty one so success is distinguishable in JSON.
func tagSessions(sessions []models.Session, device models.Device) []models.Session {
	out := make([]models.Session, len(sessions))
	for i, s := range sessions {
		s.DeviceID = device.ID
		s.DeviceName = device.Name
		out[i] = s
	}
	return out
}
