// Package fleet polls every enabled device concurrently and assembles the
// results into one aggregate snapshot.
package fleet

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/metrics"
	"github.com/HerbHall/linkstat/internal/poller"
	"github.com/HerbHall/linkstat/pkg/models"
)

// DefaultCeiling bounds a whole fleet cycle in case a device poll overruns
// its own timeout.
const DefaultCeiling = 60 * time.Second

// Poller polls a single device. *poller.DevicePoller satisfies it.
type Poller interface {
	Poll(ctx context.Context, device models.Device) poller.Outcome
}

// DeviceLister reads the device registry.
type DeviceLister interface {
	List(ctx context.Context) ([]models.Device, error)
}

// Orchestrator runs fleet poll cycles.
type Orchestrator struct {
	poller  Poller
	devices DeviceLister
	ceiling time.Duration
	clock   poller.Clock
	metrics *metrics.Collectors
	logger  *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCeiling overrides DefaultCeiling.
func WithCeiling(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.ceiling = d
		}
	}
}

// WithClock replaces the wall clock used for snapshot timestamps.
func WithClock(c poller.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithMetrics enables cycle metrics.
func WithMetrics(m *metrics.Collectors) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator.
func New(p Poller, devices DeviceLister, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		poller:  p,
		devices: devices,
		ceiling: DefaultCeiling,
		clock:   wallClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// Cycle reads the registry and polls the fleet. Failing to read the registry
// is the only error; device failures are reported inside the snapshot.
func (o *Orchestrator) Cycle(ctx context.Context) (*models.Snapshot, error) {
	devices, err := o.devices.List(ctx)
	if err != nil {
		o.metrics.CycleFailed()
		return nil, fmt.Errorf("list devices: %w", err)
	}
	snap := o.PollFleet(ctx, devices)
	o.metrics.ObserveCycle(snap.CycleDuration.Std(), snap.TotalActiveUsers, snap.LastUpdated)
	return snap, nil
}

type indexedOutcome struct {
	index   int
	outcome poller.Outcome
}

// PollFleet polls every enabled device in parallel and waits for all of
// them, or for the ceiling. Disabled devices are reported disconnected
// without being contacted. Output order follows the order of devices.
func (o *Orchestrator) PollFleet(ctx context.Context, devices []models.Device) *models.Snapshot {
	start := o.clock.Now()

	results := make(chan indexedOutcome, len(devices))
	pending := 0
	for i, d := range devices {
		if !d.Enabled {
			continue
		}
		pending++
		go func() {
			results <- indexedOutcome{index: i, outcome: o.poller.Poll(ctx, d)}
		}()
	}

	outcomes := make([]*poller.Outcome, len(devices))
	ceiling := time.NewTimer(o.ceiling)
	defer ceiling.Stop()

collect:
	for pending > 0 {
		select {
		case r := <-results:
			outcomes[r.index] = &r.outcome
			pending--
		case <-ceiling.C:
			o.logger.Warn("fleet ceiling reached before all devices answered",
				zap.Int("pending", pending),
				zap.Duration("ceiling", o.ceiling),
			)
			break collect
		}
	}

	snap := assemble(devices, outcomes, o.ceiling)
	snap.LastUpdated = o.clock.Now()
	snap.CycleDuration = models.Duration(snap.LastUpdated.Sub(start))

	o.logger.Info("fleet cycle completed",
		zap.Int("devices", len(devices)),
		zap.Int("active_users", snap.TotalActiveUsers),
		zap.Duration("took", snap.CycleDuration.Std()),
	)
	return snap
}

// assemble folds outcomes into a snapshot. A nil outcome for an enabled
// device means it was still running when the ceiling fired.
func assemble(devices []models.Device, outcomes []*poller.Outcome, ceiling time.Duration) *models.Snapshot {
	snap := &models.Snapshot{
		Devices:  make([]models.DeviceStatus, 0, len(devices)),
		Sessions: []models.Session{},
	}

	for i, d := range devices {
		status := models.DeviceStatus{
			DeviceID:    d.ID,
			DeviceName:  d.Name,
			LastSync:    d.LastSyncAt,
			LastChecked: d.LastCheckedAt,
		}
		out := outcomes[i]

		switch {
		case !d.Enabled:
			status.State = models.DeviceStateDisconnected
		case out == nil:
			status.State = models.DeviceStateError
			status.Reason = models.ReasonTimeout
			status.Error = fmt.Sprintf("%s: no answer within fleet ceiling of %s",
				poller.Hint(models.ReasonTimeout), ceiling)
		case !out.OK():
			status.State = models.DeviceStateError
			status.Reason = out.Err.Reason
			status.Error = out.Err.Message
			status.LastChecked = out.CheckedAt
		default:
			status.State = models.DeviceStateConnected
			status.ActiveUsers = len(out.Sessions)
			status.LastChecked = out.CheckedAt
			snap.Sessions = append(snap.Sessions, out.Sessions...)
		}

		snap.Devices = append(snap.Devices, status)
	}

	snap.TotalActiveUsers = len(snap.Sessions)
	return snap
}
