package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/linkstat/internal/plugin"
	"github.com/HerbHall/linkstat/internal/reconcile"
	"github.com/HerbHall/linkstat/internal/server"
	"github.com/HerbHall/linkstat/internal/services"
	"github.com/HerbHall/linkstat/pkg/models"
)

// devicesResponse is the body of GET /devices.
type devicesResponse struct {
	LastUpdated time.Time             `json:"last_updated"`
	Devices     []models.DeviceStatus `json:"devices"`
}

// subscribersResponse is the body of GET /subscribers.
type subscribersResponse struct {
	LastUpdated time.Time         `json:"last_updated"`
	Summary     reconcile.Summary `json:"summary"`
	Subscribers []reconcile.State `json:"subscribers"`
}

// refreshResponse is the body of POST /refresh.
type refreshResponse struct {
	Completed bool             `json:"completed"`
	Snapshot  *models.Snapshot `json:"snapshot"`
}

// Routes implements plugin.Plugin.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/snapshot", Handler: m.handleSnapshot},
		{Method: "POST", Path: "/refresh", Handler: m.handleRefresh},
		{Method: "GET", Path: "/devices", Handler: m.handleDevices},
		{Method: "GET", Path: "/subscribers", Handler: m.handleSubscribers},
		{Method: "GET", Path: "/subscribers/{id}", Handler: m.handleSubscriber},
		{Method: "GET", Path: "/stream", Handler: m.handleStream},
	}
}

// handleSnapshot returns the cached aggregate snapshot.
//
//	@Summary		Aggregate snapshot
//	@Description	Returns the last published snapshot. An older snapshot than max_age starts a background refresh.
//	@Tags			status
//	@Produce		json
//	@Param			max_age query string false "Staleness threshold (e.g. 30s)"
//	@Success		200 {object} models.Snapshot
//	@Failure		400 {object} server.Problem
//	@Failure		503 {object} server.Problem
//	@Router			/status/snapshot [get]
func (m *Module) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := m.readSnapshot(w, r, m.cache.Config().LiveStaleness)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleRefresh forces a fleet cycle, joining one already in flight.
//
//	@Summary		Refresh snapshot
//	@Description	Runs a fleet cycle and returns the new snapshot. Answers 202 with the current snapshot if the cycle outlasts the wait.
//	@Tags			status
//	@Produce		json
//	@Success		200 {object} refreshResponse
//	@Success		202 {object} refreshResponse
//	@Failure		429 {object} server.Problem
//	@Failure		503 {object} server.Problem
//	@Router			/status/refresh [post]
func (m *Module) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !m.limiter.Allow() {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(m.cfg.RefreshRate)))
		server.RateLimited(w, "manual refresh rate exceeded", r.URL.Path)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), m.cfg.RefreshWait)
	defer cancel()

	snap, err := m.cache.Refresh(ctx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, refreshResponse{Completed: true, Snapshot: snap})
	case ctx.Err() != nil:
		// The cycle keeps running and publishes when it finishes.
		writeJSON(w, http.StatusAccepted, refreshResponse{Snapshot: snap})
	default:
		m.logger.Warn("manual refresh failed", zap.Error(err))
		server.Unavailable(w, "refresh failed: "+err.Error(), r.URL.Path)
	}
}

// handleDevices returns per-device health.
//
//	@Summary		Device health
//	@Description	Returns the state of every registered device from the cached snapshot.
//	@Tags			status
//	@Produce		json
//	@Param			max_age query string false "Staleness threshold (e.g. 2m)"
//	@Success		200 {object} devicesResponse
//	@Failure		400 {object} server.Problem
//	@Failure		503 {object} server.Problem
//	@Router			/status/devices [get]
func (m *Module) handleDevices(w http.ResponseWriter, r *http.Request) {
	snap, ok := m.readSnapshot(w, r, m.cache.Config().HealthStaleness)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, devicesResponse{
		LastUpdated: snap.LastUpdated,
		Devices:     snap.Devices,
	})
}

// handleSubscribers returns reconciled subscriber views.
//
//	@Summary		Subscriber views
//	@Description	Joins the roster with the cached sessions. Filter with online=true|false.
//	@Tags			status
//	@Produce		json
//	@Param			max_age query string false "Staleness threshold (e.g. 30s)"
//	@Param			online query bool false "Only online or only offline subscribers"
//	@Success		200 {object} subscribersResponse
//	@Failure		400 {object} server.Problem
//	@Failure		500 {object} server.Problem
//	@Failure		503 {object} server.Problem
//	@Router			/status/subscribers [get]
func (m *Module) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	var onlineFilter *bool
	if s := r.URL.Query().Get("online"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			server.BadRequest(w, fmt.Sprintf("invalid online filter %q", s), r.URL.Path)
			return
		}
		onlineFilter = &v
	}

	snap, ok := m.readSnapshot(w, r, m.cache.Config().LiveStaleness)
	if !ok {
		return
	}

	subs, err := m.roster.List(r.Context())
	if err != nil {
		m.logger.Error("failed to list subscribers", zap.Error(err))
		server.InternalError(w, "failed to list subscribers", r.URL.Path)
		return
	}

	states := reconcile.Reconcile(subs, snap.Sessions, snap.DisabledDevices())
	summary := reconcile.Summarize(states)
	if onlineFilter != nil {
		filtered := make([]reconcile.State, 0, len(states))
		for _, s := range states {
			if s.Online == *onlineFilter {
				filtered = append(filtered, s)
			}
		}
		states = filtered
	}

	writeJSON(w, http.StatusOK, subscribersResponse{
		LastUpdated: snap.LastUpdated,
		Summary:     summary,
		Subscribers: states,
	})
}

// handleSubscriber returns one reconciled subscriber view.
//
//	@Summary		Subscriber view
//	@Tags			status
//	@Produce		json
//	@Param			id path string true "Subscriber ID"
//	@Success		200 {object} reconcile.State
//	@Failure		404 {object} server.Problem
//	@Failure		503 {object} server.Problem
//	@Router			/status/subscribers/{id} [get]
func (m *Module) handleSubscriber(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := m.roster.Get(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		server.NotFound(w, fmt.Sprintf("subscriber %q not found", id), r.URL.Path)
		return
	}
	if err != nil {
		m.logger.Error("failed to get subscriber", zap.String("subscriber_id", id), zap.Error(err))
		server.InternalError(w, "failed to get subscriber", r.URL.Path)
		return
	}

	snap, ok := m.readSnapshot(w, r, m.cache.Config().LiveStaleness)
	if !ok {
		return
	}

	states := reconcile.Reconcile([]models.Subscriber{*sub}, snap.Sessions, snap.DisabledDevices())
	writeJSON(w, http.StatusOK, states[0])
}

// readSnapshot resolves max_age and reads the cache, waiting for the first
// cycle if nothing has been published. It writes the error response itself.
func (m *Module) readSnapshot(w http.ResponseWriter, r *http.Request, def time.Duration) (*models.Snapshot, bool) {
	maxAge, err := parseMaxAge(r, def)
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return nil, false
	}
	snap, err := m.cache.GetOrWait(r.Context(), maxAge)
	if snap == nil {
		detail := "no snapshot available yet"
		if err != nil {
			detail += ": " + err.Error()
		}
		server.Unavailable(w, detail, r.URL.Path)
		return nil, false
	}
	return snap, true
}

func parseMaxAge(r *http.Request, def time.Duration) (time.Duration, error) {
	s := r.URL.Query().Get("max_age")
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid max_age %q", s)
	}
	return d, nil
}

func retryAfterSeconds(perSecond float64) int {
	if perSecond <= 0 {
		return 1
	}
	secs := int(1/perSecond + 0.5)
	if secs < 1 {
		return 1
	}
	return secs
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
