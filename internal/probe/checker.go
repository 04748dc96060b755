package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Checker pings a target and reports reachability.
type Checker interface {
	Check(ctx context.Context, target string) (*Result, error)
}

// Result is the outcome of one probe.
type Result struct {
	DeviceID    string    `json:"device_id,omitempty"`
	Target      string    `json:"target"`
	Reachable   bool      `json:"reachable"`
	PacketsSent int       `json:"packets_sent"`
	PacketsRecv int       `json:"packets_recv"`
	PacketLoss  float64   `json:"packet_loss"`
	LatencyMs   float64   `json:"latency_ms"`
	Error       string    `json:"error,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
	// LastPollError is the device's most recent poll failure, if any.
	LastPollError string `json:"last_poll_error,omitempty"`
}

// ICMPChecker pings targets using ICMP via pro-bing.
type ICMPChecker struct {
	timeout    time.Duration
	count      int
	privileged bool
}

// NewICMPChecker creates a checker sending count echo requests within timeout.
// Unprivileged mode uses UDP ping sockets and needs net.ipv4.ping_group_range
// on Linux.
func NewICMPChecker(timeout time.Duration, count int, privileged bool) *ICMPChecker {
	if count < 1 {
		count = 1
	}
	return &ICMPChecker{
		timeout:    timeout,
		count:      count,
		privileged: privileged,
	}
}

// Check pings the target. Ping failures are reported in the Result; only
// resolving the target returns an error.
func (c *ICMPChecker) Check(ctx context.Context, target string) (*Result, error) {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return nil, fmt.Errorf("create pinger for %s: %w", target, err)
	}

	pinger.Count = c.count
	pinger.Timeout = c.timeout
	pinger.SetPrivileged(c.privileged)

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		stats := pinger.Statistics()
		result := &Result{
			Target:      target,
			PacketsSent: stats.PacketsSent,
			PacketsRecv: stats.PacketsRecv,
			CheckedAt:   time.Now().UTC(),
		}
		if runErr != nil {
			result.PacketLoss = 1.0
			result.Error = runErr.Error()
			return result, nil
		}

		result.LatencyMs = float64(stats.AvgRtt) / float64(time.Millisecond)
		result.PacketLoss = stats.PacketLoss / 100.0 // pro-bing returns 0-100
		result.Reachable = stats.PacketsRecv > 0
		if !result.Reachable {
			result.Error = "all packets lost"
		}
		return result, nil

	case <-ctx.Done():
		pinger.Stop()
		<-done
		return &Result{
			Target:     target,
			PacketLoss: 1.0,
			Error:      "probe cancelled",
			CheckedAt:  time.Now().UTC(),
		}, nil
	}
}
