package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/config"
	"github.com/HerbHall/linkstat/internal/plugin"
)

type echoModule struct{}

func (echoModule) Name() string                           { return "echo" }
func (echoModule) Version() string                        { return "0.1.0" }
func (echoModule) Init(*config.Config, *zap.Logger) error { return nil }
func (echoModule) Start(context.Context) error            { return nil }
func (echoModule) Stop() error                            { return nil }
func (echoModule) Routes() []plugin.Route {
	return []plugin.Route{{
		Method: http.MethodGet,
		Path:   "/items/{id}",
		Handler: func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, r.PathValue("id"))
		},
	}}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := plugin.NewRegistry(zap.NewNop())
	if err := reg.Register(echoModule{}); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.Set("modules.echo.enabled", true)
	if err := reg.InitAll(config.New(v)); err != nil {
		t.Fatal(err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "linkstat_test_total", Help: "test"}))
	return New("127.0.0.1:0", reg, promReg, zap.NewNop())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get(VersionHeader); got != "dev" {
		t.Errorf("%s = %q, want %q", VersionHeader, got, "dev")
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["service"] != "linkstat" {
		t.Errorf("body = %v", body)
	}
}

func TestModules(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/modules", nil))

	var got []plugin.Status
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "echo" || !got[0].Enabled {
		t.Errorf("modules = %+v, want echo enabled", got)
	}
}

func TestModuleRoutesMounted(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/echo/items/nas-7", nil))

	if w.Code != http.StatusOK || w.Body.String() != "nas-7" {
		t.Errorf("GET /api/v1/echo/items/nas-7 = %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/echo/items/nas-7", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "linkstat_test_total") {
		t.Error("metrics output missing registered collector")
	}
}

func TestSwaggerDoc(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var doc struct {
		Info     struct{ Title string } `json:"info"`
		BasePath string                 `json:"basePath"`
		Paths    map[string]any         `json:"paths"`
	}
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Info.Title != "linkstat API" {
		t.Errorf("title = %q, want %q", doc.Info.Title, "linkstat API")
	}
	if doc.BasePath != "/api/v1" {
		t.Errorf("basePath = %q, want /api/v1", doc.BasePath)
	}
	if _, ok := doc.Paths["/status/snapshot"]; !ok {
		t.Error("paths missing /status/snapshot")
	}
}

func TestServeAndShutdown(t *testing.T) {
	reg := plugin.NewRegistry(zap.NewNop())
	srv := New("127.0.0.1:0", reg, nil, zap.NewNop(), WithMaxConnections(2))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve() error = %v, want nil after shutdown", err)
	}
}
