// Package mqttpub publishes each new aggregate snapshot to an MQTT broker as
// retained messages: a fleet summary plus one health message per device.
package mqttpub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/aggregate"
	"github.com/HerbHall/linkstat/internal/config"
	"github.com/HerbHall/linkstat/internal/metrics"
	"github.com/HerbHall/linkstat/internal/plugin"
	"github.com/HerbHall/linkstat/pkg/models"
)

const metricSink = "mqtt"

// Client is the subset of mqtt.Client the publisher uses.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// Config holds the modules.mqtt section.
type Config struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            int           `mapstructure:"qos"`
	Retain         bool          `mapstructure:"retain"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// DefaultConfig returns the module defaults.
func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		ClientID:       "linkstat",
		TopicPrefix:    "linkstat",
		QoS:            1,
		Retain:         true,
		PublishTimeout: 5 * time.Second,
	}
}

// Summary is the payload of {prefix}/summary.
type Summary struct {
	TotalActiveUsers    int       `json:"total_active_users"`
	DevicesTotal        int       `json:"devices_total"`
	DevicesConnected    int       `json:"devices_connected"`
	DevicesError        int       `json:"devices_error"`
	DevicesDisconnected int       `json:"devices_disconnected"`
	LastUpdated         time.Time `json:"last_updated"`
}

// Summarize counts device states in snap.
func Summarize(snap *models.Snapshot) Summary {
	s := Summary{
		TotalActiveUsers: snap.TotalActiveUsers,
		DevicesTotal:     len(snap.Devices),
		LastUpdated:      snap.LastUpdated,
	}
	for _, d := range snap.Devices {
		switch d.State {
		case models.DeviceStateConnected:
			s.DevicesConnected++
		case models.DeviceStateError:
			s.DevicesError++
		case models.DeviceStateDisconnected:
			s.DevicesDisconnected++
		}
	}
	return s
}

// Module implements plugin.Plugin for the MQTT publisher.
type Module struct {
	cache   *aggregate.Cache
	client  Client
	metrics *metrics.Collectors
	cfg     Config
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Module.
type Option func(*Module)

// WithClient replaces the paho client built in Init.
func WithClient(c Client) Option {
	return func(m *Module) { m.client = c }
}

// WithMetrics counts failed publishes.
func WithMetrics(c *metrics.Collectors) Option {
	return func(m *Module) { m.metrics = c }
}

// New creates the publisher.
func New(cache *aggregate.Cache, opts ...Option) *Module {
	m := &Module{
		cache:  cache,
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string    { return "mqtt" }
func (m *Module) Version() string { return "0.1.0" }

func (m *Module) Init(cfg *config.Config, logger *zap.Logger) error {
	m.logger = logger
	c := DefaultConfig()
	if err := cfg.Unmarshal(&c); err != nil {
		return fmt.Errorf("decode mqtt config: %w", err)
	}
	if c.QoS < 0 || c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	if c.TopicPrefix == "" {
		return errors.New("topic_prefix is required")
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultConfig().PublishTimeout
	}
	m.cfg = c

	if m.client == nil {
		m.client = mqtt.NewClient(m.clientOptions())
	}
	return nil
}

func (m *Module) clientOptions() *mqtt.ClientOptions {
	statusTopic := m.cfg.TopicPrefix + "/status"
	qos := byte(m.cfg.QoS)
	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetUsername(m.cfg.Username).
		SetPassword(m.cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(m.cfg.PublishTimeout).
		SetWill(statusTopic, "offline", qos, true).
		SetOnConnectHandler(func(c mqtt.Client) {
			m.logger.Info("connected to broker", zap.String("broker", m.cfg.Broker))
			c.Publish(statusTopic, qos, true, "online")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.logger.Warn("broker connection lost", zap.Error(err))
		})
	return opts
}

// Start connects to the broker and begins forwarding snapshots. The client
// keeps retrying in the background if the broker is not reachable yet.
func (m *Module) Start(_ context.Context) error {
	tok := m.client.Connect()
	if !tok.WaitTimeout(m.cfg.PublishTimeout) {
		m.logger.Warn("broker not reachable yet, retrying in background", zap.String("broker", m.cfg.Broker))
	} else if err := tok.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", m.cfg.Broker, err)
	}

	updates, unsubscribe := m.cache.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer unsubscribe()
		m.run(ctx, updates)
	}()
	return nil
}

func (m *Module) Stop() error {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
	}
	m.client.Disconnect(250)
	return nil
}

func (m *Module) Routes() []plugin.Route { return nil }

func (m *Module) run(ctx context.Context, updates <-chan *models.Snapshot) {
	if snap := m.cache.Snapshot(); snap != nil {
		m.publishLogged(snap)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			m.publishLogged(snap)
		}
	}
}

func (m *Module) publishLogged(snap *models.Snapshot) {
	if err := m.Publish(snap); err != nil {
		m.logger.Warn("failed to publish snapshot", zap.Error(err))
	}
}

// Publish sends the summary and every device's status for snap.
func (m *Module) Publish(snap *models.Snapshot) error {
	var errs []error
	if err := m.send(m.cfg.TopicPrefix+"/summary", Summarize(snap)); err != nil {
		errs = append(errs, err)
	}
	for _, d := range snap.Devices {
		if err := m.send(m.cfg.TopicPrefix+"/devices/"+d.DeviceID, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Module) send(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	tok := m.client.Publish(topic, byte(m.cfg.QoS), m.cfg.Retain, payload)
	if !tok.WaitTimeout(m.cfg.PublishTimeout) {
		m.metrics.PublishFailed(metricSink)
		return fmt.Errorf("publish %s: timed out after %s", topic, m.cfg.PublishTimeout)
	}
	if err := tok.Error(); err != nil {
		m.metrics.PublishFailed(metricSink)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
