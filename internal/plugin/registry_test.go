package plugin

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/config"
)

// testPlugin is a minimal module that records lifecycle calls into a shared log.
type testPlugin struct {
	name     string
	initErr  error
	startErr error
	log      *[]string
	section  *config.Config
}

func newTestPlugin(name string, log *[]string) *testPlugin {
	return &testPlugin{name: name, log: log}
}

func (p *testPlugin) Name() string    { return p.name }
func (p *testPlugin) Version() string { return "1.0.0" }
func (p *testPlugin) Init(cfg *config.Config, _ *zap.Logger) error {
	p.section = cfg
	*p.log = append(*p.log, "init:"+p.name)
	return p.initErr
}
func (p *testPlugin) Start(context.Context) error {
	*p.log = append(*p.log, "start:"+p.name)
	return p.startErr
}
func (p *testPlugin) Stop() error {
	*p.log = append(*p.log, "stop:"+p.name)
	return nil
}
func (p *testPlugin) Routes() []Route {
	return []Route{{Method: http.MethodGet, Path: "/ping", Handler: func(http.ResponseWriter, *http.Request) {}}}
}

func testConfig(enabled ...string) *config.Config {
	v := viper.New()
	for _, name := range enabled {
		v.Set("modules."+name+".enabled", true)
	}
	return config.New(v)
}

func TestRegister(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var log []string

	p := newTestPlugin("alpha", &log)
	if err := reg.Register(p); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(p); err == nil {
		t.Fatal("Register() expected error for duplicate, got nil")
	}
	if err := reg.Register(newTestPlugin("", &log)); err == nil {
		t.Fatal("Register() expected error for empty name, got nil")
	}
	if got, ok := reg.Get("alpha"); !ok || got != p {
		t.Errorf("Get(alpha) = %v, %v", got, ok)
	}
}

func TestLifecycleOrder(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var log []string
	for _, name := range []string{"a", "b", "c"} {
		if err := reg.Register(newTestPlugin(name, &log)); err != nil {
			t.Fatal(err)
		}
	}

	if err := reg.InitAll(testConfig("a", "c")); err != nil {
		t.Fatalf("InitAll() error = %v", err)
	}
	if err := reg.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
	reg.StopAll()

	want := []string{"init:a", "init:c", "start:a", "start:c", "stop:c", "stop:a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("lifecycle = %v, want %v", log, want)
	}
}

func TestInitAllPassesSection(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var log []string
	p := newTestPlugin("probe", &log)
	reg.Register(p)

	v := viper.New()
	v.Set("modules.probe.enabled", true)
	v.Set("modules.probe.count", 5)
	if err := reg.InitAll(config.New(v)); err != nil {
		t.Fatal(err)
	}
	if got := p.section.GetInt("count"); got != 5 {
		t.Errorf("section count = %d, want 5", got)
	}
}

func TestInitAllError(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var log []string
	p := newTestPlugin("bad", &log)
	p.initErr = errors.New("boom")
	reg.Register(p)

	if err := reg.InitAll(testConfig("bad")); err == nil {
		t.Fatal("InitAll() expected error, got nil")
	}
}

func TestStartAllRollsBack(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var log []string
	reg.Register(newTestPlugin("a", &log))
	failing := newTestPlugin("b", &log)
	failing.startErr = errors.New("port in use")
	reg.Register(failing)

	if err := reg.InitAll(testConfig("a", "b")); err != nil {
		t.Fatal(err)
	}
	if err := reg.StartAll(context.Background()); err == nil {
		t.Fatal("StartAll() expected error, got nil")
	}

	want := []string{"init:a", "init:b", "start:a", "start:b", "stop:a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("lifecycle = %v, want %v", log, want)
	}

	log = log[:0]
	reg.StopAll()
	if len(log) != 0 {
		t.Errorf("StopAll() after rollback = %v, want no calls", log)
	}
}

func TestAllRoutesAndStatuses(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var log []string
	reg.Register(newTestPlugin("status", &log))
	reg.Register(newTestPlugin("mqtt", &log))

	if err := reg.InitAll(testConfig("status")); err != nil {
		t.Fatal(err)
	}

	routes := reg.AllRoutes()
	if _, ok := routes["status"]; !ok {
		t.Error("AllRoutes() missing enabled module")
	}
	if _, ok := routes["mqtt"]; ok {
		t.Error("AllRoutes() includes disabled module")
	}

	want := []Status{
		{Name: "status", Version: "1.0.0", Enabled: true},
		{Name: "mqtt", Version: "1.0.0", Enabled: false},
	}
	if got := reg.Statuses(); !reflect.DeepEqual(got, want) {
		t.Errorf("Statuses() = %+v, want %+v", got, want)
	}
}
