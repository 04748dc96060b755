package poller

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/HerbHall/linkstat/pkg/models"
)

// Sentinel errors returned by adapters so Classify can map them without
// inspecting message text.
var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrProtocol        = errors.New("protocol error")
	ErrUnsupportedKind = errors.New("unsupported device kind")
)

// PollError is a classified poll failure. Message combines an operator hint
// with the underlying error text and is what gets stored as the device's
// ConnectionError.
type PollError struct {
	Reason  models.PollReason
	Message string
	Err     error
}

func (e *PollError) Error() string { return e.Message }

func (e *PollError) Unwrap() error { return e.Err }

var hints = map[models.PollReason]string{
	models.ReasonTimeout:       "device did not answer in time, check that it is online and the API port is not filtered",
	models.ReasonRefused:       "connection refused, check the port and that the API service is enabled on the device",
	models.ReasonAuthFailed:    "authentication failed, check the device username and password",
	models.ReasonUnreachable:   "host unreachable, check the address and routing to the device",
	models.ReasonProtocolError: "unexpected response, check the device kind and firmware version",
	models.ReasonUnknown:       "poll failed",
}

// Hint returns the operator-facing remediation text for reason.
func Hint(reason models.PollReason) string {
	if h, ok := hints[reason]; ok {
		return h
	}
	return hints[models.ReasonUnknown]
}

// Classify maps a transport or adapter error onto a PollReason.
func Classify(err error) *PollError {
	if err == nil {
		return nil
	}
	var pe *PollError
	if errors.As(err, &pe) {
		return pe
	}
	reason := classifyReason(err)
	return &PollError{
		Reason:  reason,
		Message: Hint(reason) + ": " + err.Error(),
		Err:     err,
	}
}

// textPatterns are checked in order when no typed error matched. Device
// firmware and some client libraries only report failures as text.
var textPatterns = []struct {
	substr string
	reason models.PollReason
}{
	{"connection refused", models.ReasonRefused},
	{"actively refused", models.ReasonRefused},
	{"timeout", models.ReasonTimeout},
	{"timed out", models.ReasonTimeout},
	{"deadline exceeded", models.ReasonTimeout},
	{"invalid user name or password", models.ReasonAuthFailed},
	{"cannot log in", models.ReasonAuthFailed},
	{"unauthorized", models.ReasonAuthFailed},
	{"authentication", models.ReasonAuthFailed},
	{"no route to host", models.ReasonUnreachable},
	{"host is unreachable", models.ReasonUnreachable},
	{"network is unreachable", models.ReasonUnreachable},
	{"no such host", models.ReasonUnreachable},
	{"malformed", models.ReasonProtocolError},
	{"invalid character", models.ReasonProtocolError},
	{"tls:", models.ReasonProtocolError},
	{"x509:", models.ReasonProtocolError},
}

func classifyReason(err error) models.PollReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.ReasonTimeout
	case errors.Is(err, ErrAuthFailed):
		return models.ReasonAuthFailed
	case errors.Is(err, ErrProtocol), errors.Is(err, ErrUnsupportedKind):
		return models.ReasonProtocolError
	case errors.Is(err, syscall.ECONNREFUSED):
		return models.ReasonRefused
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return models.ReasonUnreachable
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return models.ReasonTimeout
		}
		return models.ReasonUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ReasonTimeout
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return models.ReasonProtocolError
	}

	msg := strings.ToLower(err.Error())
	for _, p := range textPatterns {
		if strings.Contains(msg, p.substr) {
			return p.reason
		}
	}
	return models.ReasonUnknown
}
