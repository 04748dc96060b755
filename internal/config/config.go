// Package config loads linkstat settings from an optional file, LINKSTAT_*
// environment variables, and built-in defaults, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// LINKSTAT_POLLER_TIMEOUT=20s.
const EnvPrefix = "LINKSTAT"

// Config is a nil-safe view over a viper instance. Sub never returns nil so
// module code can read its section unconditionally.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil v behaves as an empty configuration.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

// Load reads configuration. With an empty path it looks for linkstat.yaml in
// the working directory and /etc/linkstat, and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		return New(v), nil
	}

	v.SetConfigName("linkstat")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/linkstat")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}

// SetDefaults installs every known key so environment overrides apply even
// when no config file sets them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_connections", 1024)
	v.SetDefault("database.path", "linkstat.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("poller.timeout", 15*time.Second)
	v.SetDefault("poller.fleet_timeout", 60*time.Second)
	v.SetDefault("poller.routeros.scheme", "https")
	v.SetDefault("poller.routeros.insecure_skip_verify", true)
	v.SetDefault("poller.snmp.retries", 1)
	v.SetDefault("poller.snmp.timeout", 5*time.Second)

	v.SetDefault("cache.live_staleness", 30*time.Second)
	v.SetDefault("cache.health_staleness", 2*time.Minute)
	v.SetDefault("cache.refresh_interval", 30*time.Second)
	v.SetDefault("cache.keep_warm", true)

	v.SetDefault("modules.status.enabled", true)
	v.SetDefault("modules.status.refresh_rate", 0.2)
	v.SetDefault("modules.status.refresh_burst", 2)
	v.SetDefault("modules.status.refresh_wait", 10*time.Second)

	v.SetDefault("modules.probe.enabled", true)
	v.SetDefault("modules.probe.count", 3)
	v.SetDefault("modules.probe.timeout", 5*time.Second)
	v.SetDefault("modules.probe.privileged", false)
	v.SetDefault("modules.probe.max_concurrent", 8)

	v.SetDefault("modules.mqtt.enabled", false)
	v.SetDefault("modules.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("modules.mqtt.client_id", "linkstat")
	v.SetDefault("modules.mqtt.username", "")
	v.SetDefault("modules.mqtt.password", "")
	v.SetDefault("modules.mqtt.topic_prefix", "linkstat")
	v.SetDefault("modules.mqtt.qos", 1)
	v.SetDefault("modules.mqtt.retain", true)
	v.SetDefault("modules.mqtt.publish_timeout", 5*time.Second)
}

func (c *Config) GetString(key string) string          { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *Config) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *Config) GetFloat64(key string) float64        { return c.v.GetFloat64(key) }
func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *Config) IsSet(key string) bool                { return c.v.IsSet(key) }

// Sub returns the section under key, or an empty Config.
//
// viper.Sub only sees the layer that defines the section first, so a config
// file would hide defaults. The section is rebuilt key by key instead, which
// keeps defaults, file values, and environment overrides merged.
func (c *Config) Sub(key string) *Config {
	prefix := strings.ToLower(key) + "."
	sub := viper.New()
	for _, k := range c.v.AllKeys() {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			sub.Set(rest, c.v.Get(k))
		}
	}
	return New(sub)
}

// Unmarshal decodes the whole configuration into target using mapstructure
// tags. Duration strings such as "15s" decode into time.Duration fields.
func (c *Config) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

// UnmarshalKey decodes the section under key into target.
func (c *Config) UnmarshalKey(key string, target any) error {
	return c.v.UnmarshalKey(key, target)
}

// Viper exposes the underlying instance.
func (c *Config) Viper() *viper.Viper { return c.v }
