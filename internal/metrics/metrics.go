// Package metrics holds the Prometheus collectors for polling, the aggregate
// cache, and publishing. A nil *Collectors is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkstat"

// Collectors contains every metric the service exports.
type Collectors struct {
	// Per-device polling
	DevicePollsTotal    *prometheus.CounterVec
	DevicePollDuration  *prometheus.HistogramVec
	DeviceActiveSession *prometheus.GaugeVec
	DeviceUp            *prometheus.GaugeVec

	// Fleet cycles
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	ActiveUsers      prometheus.Gauge
	SnapshotUnixTime prometheus.Gauge

	// Aggregate cache
	RefreshCoalescedTotal prometheus.Counter
	Watchers              prometheus.Gauge

	// Publishing
	PublishErrorsTotal *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		DevicePollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "device_polls_total",
				Help:      "Device poll attempts by result (ok or failure reason).",
			},
			[]string{"device_id", "result"},
		),
		DevicePollDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "device_poll_duration_seconds",
				Help:      "Time spent polling one device.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. 25.6s
			},
			[]string{"device_id"},
		),
		DeviceActiveSession: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "device_active_sessions",
				Help:      "Active sessions reported by the last successful poll of a device.",
			},
			[]string{"device_id"},
		),
		DeviceUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "device_up",
				Help:      "1 if the last poll of a device succeeded, 0 otherwise.",
			},
			[]string{"device_id"},
		),
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fleet_cycles_total",
				Help:      "Fleet poll cycles by result.",
			},
			[]string{"result"},
		),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fleet_cycle_duration_seconds",
			Help:      "Wall time of a fleet poll cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ActiveUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_users",
			Help:      "Total active users in the published snapshot.",
		}),
		SnapshotUnixTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_timestamp_seconds",
			Help:      "Unix time the published snapshot was assembled.",
		}),
		RefreshCoalescedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_coalesced_total",
			Help:      "Refresh calls answered by a cycle shared with other callers.",
		}),
		Watchers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watchers",
			Help:      "Consumers currently holding the refresh timer open.",
		}),
		PublishErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_errors_total",
				Help:      "Failed snapshot publications by sink.",
			},
			[]string{"sink"},
		),
	}
}

// ObserveDevicePoll records one poll. An empty reason means success.
func (c *Collectors) ObserveDevicePoll(deviceID, reason string, took time.Duration, sessions int) {
	if c == nil {
		return
	}
	result := reason
	up := 0.0
	if result == "" {
		result = "ok"
		up = 1
		c.DeviceActiveSession.WithLabelValues(deviceID).Set(float64(sessions))
	}
	c.DeviceUp.WithLabelValues(deviceID).Set(up)
	c.DevicePollsTotal.WithLabelValues(deviceID, result).Inc()
	c.DevicePollDuration.WithLabelValues(deviceID).Observe(took.Seconds())
}

// ObserveCycle records a completed fleet cycle.
func (c *Collectors) ObserveCycle(took time.Duration, activeUsers int, at time.Time) {
	if c == nil {
		return
	}
	c.CyclesTotal.WithLabelValues("ok").Inc()
	c.CycleDuration.Observe(took.Seconds())
	c.ActiveUsers.Set(float64(activeUsers))
	c.SnapshotUnixTime.Set(float64(at.Unix()))
}

// CycleFailed records a cycle that produced no snapshot.
func (c *Collectors) CycleFailed() {
	if c == nil {
		return
	}
	c.CyclesTotal.WithLabelValues("error").Inc()
}

// RefreshCoalesced records a caller whose refresh shared a cycle.
func (c *Collectors) RefreshCoalesced() {
	if c == nil {
		return
	}
	c.RefreshCoalescedTotal.Inc()
}

// SetWatchers sets the current watcher count.
func (c *Collectors) SetWatchers(n int) {
	if c == nil {
		return
	}
	c.Watchers.Set(float64(n))
}

// PublishFailed records a failed publication to sink.
func (c *Collectors) PublishFailed(sink string) {
	if c == nil {
		return
	}
	c.PublishErrorsTotal.WithLabelValues(sink).Inc()
}
