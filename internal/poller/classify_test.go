package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/HerbHall/linkstat/pkg/models"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	opErr := func(errno syscall.Errno) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", errno)}
	}
	var syntaxErr *json.SyntaxError
	badJSON := json.Unmarshal([]byte("{not json"), &struct{}{})
	if !errors.As(badJSON, &syntaxErr) {
		t.Fatalf("expected a *json.SyntaxError, got %T", badJSON)
	}

	tests := []struct {
		name string
		err  error
		want models.PollReason
	}{
		{"deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), models.ReasonTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, models.ReasonTimeout},
		{"refused errno", opErr(syscall.ECONNREFUSED), models.ReasonRefused},
		{"host unreachable errno", opErr(syscall.EHOSTUNREACH), models.ReasonUnreachable},
		{"net unreachable errno", opErr(syscall.ENETUNREACH), models.ReasonUnreachable},
		{"dns", &net.DNSError{Err: "no such host", Name: "nas.invalid", IsNotFound: true}, models.ReasonUnreachable},
		{"dns timeout", &net.DNSError{Err: "i/o", Name: "nas.example", IsTimeout: true}, models.ReasonTimeout},
		{"auth sentinel", fmt.Errorf("%w: HTTP 403", ErrAuthFailed), models.ReasonAuthFailed},
		{"protocol sentinel", fmt.Errorf("%w: HTTP 500", ErrProtocol), models.ReasonProtocolError},
		{"unsupported kind", fmt.Errorf("%w %q", ErrUnsupportedKind, "x"), models.ReasonProtocolError},
		{"json syntax", badJSON, models.ReasonProtocolError},
		{"snmp timeout text", errors.New("request timeout (after 1 retries)"), models.ReasonTimeout},
		{"routeros login text", errors.New("from RouterOS device: invalid user name or password (6)"), models.ReasonAuthFailed},
		{"tls text", errors.New("tls: first record does not look like a TLS handshake"), models.ReasonProtocolError},
		{"unknown", errors.New("mystery"), models.ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Reason != tt.want {
				t.Errorf("Classify(%v).Reason = %q, want %q", tt.err, got.Reason, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("Classify(%v) does not wrap the original error", tt.err)
			}
			if !strings.HasPrefix(got.Message, Hint(tt.want)) {
				t.Errorf("Message = %q, want hint prefix %q", got.Message, Hint(tt.want))
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

func TestClassify_AlreadyClassified(t *testing.T) {
	pe := &PollError{Reason: models.ReasonRefused, Message: "x"}
	if got := Classify(fmt.Errorf("wrapped: %w", pe)); got != pe {
		t.Errorf("Classify() = %v, want the existing PollError", got)
	}
}

func TestHint_UnknownReasonFallsBack(t *testing.T) {
	if got := Hint("weird"); got != Hint(models.ReasonUnknown) {
		t.Errorf("Hint(weird) = %q, want unknown hint", got)
	}
}
