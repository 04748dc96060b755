package poller

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/HerbHall/linkstat/internal/version"
	"github.com/HerbHall/linkstat/pkg/models"
)

const (
	pppActivePath = "/rest/ppp/active"
	maxBodyBytes  = 8 << 20
)

// RESTConfig configures the RouterOS REST adapter.
type RESTConfig struct {
	// Scheme is "https" (default) or "http".
	Scheme string `mapstructure:"scheme"`
	// InsecureSkipVerify accepts the self-signed certificates RouterOS ships with.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// RouterOSREST lists PPP sessions through the RouterOS v7 REST API.
type RouterOSREST struct {
	client *http.Client
	scheme string
}

// NewRouterOSREST creates the adapter. Timeouts come from the poll context.
func NewRouterOSREST(cfg RESTConfig) *RouterOSREST {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // access servers use self-signed certificates
	}
	return &RouterOSREST{
		client: &http.Client{Transport: transport},
		scheme: scheme,
	}
}

// pppActive mirrors one entry of /rest/ppp/active. RouterOS encodes every
// value as a string.
type pppActive struct {
	ID            string `json:".id"`
	Name          string `json:"name"`
	Service       string `json:"service"`
	CallerID      string `json:"caller-id"`
	Address       string `json:"address"`
	Uptime        string `json:"uptime"`
	Encoding      string `json:"encoding"`
	LimitBytesIn  string `json:"limit-bytes-in"`
	LimitBytesOut string `json:"limit-bytes-out"`
}

func (a *RouterOSREST) ActiveSessions(ctx context.Context, device models.Device) ([]models.Session, error) {
	port := device.Port
	if port == 0 {
		port = 443
		if a.scheme == "http" {
			port = 80
		}
	}
	u := url.URL{
		Scheme: a.scheme,
		Host:   net.JoinHostPort(device.Address, strconv.Itoa(port)),
		Path:   pppActivePath,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(device.Username, device.Password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrAuthFailed, resp.StatusCode, u.Host)
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: HTTP %d from %s: %s",
			ErrProtocol, resp.StatusCode, u.Host, strings.TrimSpace(string(snippet)))
	}

	var entries []pppActive
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrProtocol, pppActivePath, err)
	}

	sessions := make([]models.Session, 0, len(entries))
	for _, e := range entries {
		uptime, err := ParseRouterOSDuration(e.Uptime)
		if err != nil {
			return nil, fmt.Errorf("%w: session %s: %v", ErrProtocol, e.ID, err)
		}
		sessions = append(sessions, models.Session{
			SessionID:     e.ID,
			LoginName:     e.Name,
			PeerAddress:   e.Address,
			CallerID:      e.CallerID,
			Uptime:        models.Duration(uptime),
			Encoding:      e.Encoding,
			ServiceType:   e.Service,
			LimitBytesIn:  parseLimit(e.LimitBytesIn),
			LimitBytesOut: parseLimit(e.LimitBytesOut),
		})
	}
	return sessions, nil
}

func parseLimit(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

var routerOSUnits = map[rune]time.Duration{
	'w': 7 * 24 * time.Hour,
	'd': 24 * time.Hour,
	'h': time.Hour,
	'm': time.Minute,
	's': time.Second,
}

// ParseRouterOSDuration parses RouterOS uptimes such as "1w2d3h4m5s" and the
// older "2d03:04:05" form. An empty string is zero.
func ParseRouterOSDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	var total time.Duration
	rest := s
	// Trailing hh:mm:ss clock.
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		start := strings.LastIndexFunc(rest[:i], func(r rune) bool { return !unicode.IsDigit(r) }) + 1
		clock, err := parseClock(rest[start:])
		if err != nil {
			return 0, fmt.Errorf("uptime %q: %w", s, err)
		}
		total += clock
		rest = rest[:start]
	}

	num := 0
	digits := false
	for _, r := range rest {
		if unicode.IsDigit(r) {
			num = num*10 + int(r-'0')
			digits = true
			continue
		}
		unit, ok := routerOSUnits[r]
		if !ok || !digits {
			return 0, fmt.Errorf("uptime %q: unexpected %q", s, r)
		}
		total += time.Duration(num) * unit
		num, digits = 0, false
	}
	if digits {
		return 0, fmt.Errorf("uptime %q: missing unit", s)
	}
	return total, nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad clock %q", s)
	}
	var d time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad clock %q", s)
		}
		d += time.Duration(n) * units[i]
	}
	return d, nil
}
