package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidDuration is returned when a Duration cannot be decoded.
var ErrInvalidDuration = errors.New("invalid duration")

// Duration is a time.Duration that encodes to JSON as a Go duration string.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
	default:
		return ErrInvalidDuration
	}

	return nil
}

// Session is one live subscriber connection reported by a device at poll
// time. SessionID is only unique within the owning device; use Key when
// sessions from several devices are combined.
type Session struct {
	DeviceID    string   `json:"device_id"`
	DeviceName  string   `json:"device_name"`
	SessionID   string   `json:"session_id"`
	LoginName   string   `json:"login_name"`
	PeerAddress string   `json:"peer_address,omitempty"`
	CallerID    string   `json:"caller_id,omitempty"`
	Uptime      Duration `json:"uptime"`
	Encoding    string   `json:"encoding,omitempty"`
	ServiceType string   `json:"service_type,omitempty"`

	// Byte ceilings as seen by the device: In is traffic received from the
	// subscriber (upstream), Out is traffic sent to it (downstream).
	// Zero means no ceiling.
	LimitBytesIn  int64 `json:"limit_bytes_in,omitempty"`
	LimitBytesOut int64 `json:"limit_bytes_out,omitempty"`
}

// Key returns the session identifier namespaced by its device.
func (s Session) Key() string {
	return s.DeviceID + "/" + s.SessionID
}
