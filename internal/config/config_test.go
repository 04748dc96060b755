package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestConfigGetString(t *testing.T) {
	v := viper.New()
	v.Set("name", "test")
	cfg := New(v)

	if got := cfg.GetString("name"); got != "test" {
		t.Errorf("GetString('name') = %q, want %q", got, "test")
	}
}

func TestConfigGetInt(t *testing.T) {
	v := viper.New()
	v.Set("port", 8080)
	cfg := New(v)

	if got := cfg.GetInt("port"); got != 8080 {
		t.Errorf("GetInt('port') = %d, want %d", got, 8080)
	}
}

func TestConfigGetBool(t *testing.T) {
	v := viper.New()
	v.Set("enabled", true)
	cfg := New(v)

	if got := cfg.GetBool("enabled"); !got {
		t.Error("GetBool('enabled') = false, want true")
	}
}

func TestConfigGetDuration(t *testing.T) {
	v := viper.New()
	v.Set("timeout", "5s")
	cfg := New(v)

	want := 5 * time.Second
	if got := cfg.GetDuration("timeout"); got != want {
		t.Errorf("GetDuration('timeout') = %v, want %v", got, want)
	}
}

func TestConfigIsSet(t *testing.T) {
	v := viper.New()
	v.Set("exists", true)
	cfg := New(v)

	if !cfg.IsSet("exists") {
		t.Error("IsSet('exists') = false, want true")
	}
	if cfg.IsSet("missing") {
		t.Error("IsSet('missing') = true, want false")
	}
}

func TestConfigSub(t *testing.T) {
	v := viper.New()
	v.Set("modules.status.enabled", true)
	v.Set("modules.status.refresh_burst", 30)
	cfg := New(v)

	sub := cfg.Sub("modules.status")
	if got := sub.GetBool("enabled"); !got {
		t.Error("sub.GetBool('enabled') = false, want true")
	}
	if got := sub.GetInt("refresh_burst"); got != 30 {
		t.Errorf("sub.GetInt('refresh_burst') = %d, want %d", got, 30)
	}
}

func TestConfigSubMissing(t *testing.T) {
	cfg := New(viper.New())

	sub := cfg.Sub("nonexistent")
	if sub == nil {
		t.Fatal("Sub('nonexistent') should return empty Config, not nil")
	}
	if got := sub.GetString("anything"); got != "" {
		t.Errorf("empty config GetString() = %q, want empty", got)
	}
}

func TestConfigSubKeepsDefaultsUnderFileValues(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("modules.mqtt.broker", "tcp://broker.isp.example:1883")
	cfg := New(v)

	sub := cfg.Sub("modules.mqtt")
	if got := sub.GetString("broker"); got != "tcp://broker.isp.example:1883" {
		t.Errorf("broker = %q, want override", got)
	}
	if got := sub.GetString("topic_prefix"); got != "linkstat" {
		t.Errorf("topic_prefix = %q, want default %q", got, "linkstat")
	}
}

func TestConfigUnmarshalKey(t *testing.T) {
	v := viper.New()
	v.Set("poller.timeout", "20s")
	v.Set("poller.routeros.scheme", "http")
	cfg := New(v)

	var target struct {
		Timeout  time.Duration `mapstructure:"timeout"`
		RouterOS struct {
			Scheme string `mapstructure:"scheme"`
		} `mapstructure:"routeros"`
	}
	if err := cfg.UnmarshalKey("poller", &target); err != nil {
		t.Fatalf("UnmarshalKey() error = %v", err)
	}
	if target.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, want 20s", target.Timeout)
	}
	if target.RouterOS.Scheme != "http" {
		t.Errorf("Scheme = %q, want %q", target.RouterOS.Scheme, "http")
	}
}

func TestNilViper(t *testing.T) {
	cfg := New(nil)
	if got := cfg.GetString("key"); got != "" {
		t.Errorf("nil viper GetString() = %q, want empty", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		key  string
		want time.Duration
	}{
		{"poller.timeout", 15 * time.Second},
		{"poller.fleet_timeout", 60 * time.Second},
		{"cache.live_staleness", 30 * time.Second},
		{"cache.health_staleness", 2 * time.Minute},
		{"cache.refresh_interval", 30 * time.Second},
	}
	for _, tt := range tests {
		if got := cfg.GetDuration(tt.key); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.key, got, tt.want)
		}
	}
	if !cfg.GetBool("cache.keep_warm") {
		t.Error("cache.keep_warm = false, want true")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linkstat.yaml")
	body := []byte("poller:\n  timeout: 9s\ncache:\n  refresh_interval: 45s\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LINKSTAT_CACHE_REFRESH_INTERVAL", "90s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.GetDuration("poller.timeout"); got != 9*time.Second {
		t.Errorf("poller.timeout = %v, want 9s from file", got)
	}
	if got := cfg.GetDuration("cache.refresh_interval"); got != 90*time.Second {
		t.Errorf("cache.refresh_interval = %v, want 90s from env", got)
	}
	if got := cfg.GetDuration("cache.live_staleness"); got != 30*time.Second {
		t.Errorf("cache.live_staleness = %v, want default 30s", got)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}
}
