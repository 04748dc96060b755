package models

import "time"

// DeviceKind selects the adapter used to query a device for active sessions.
type DeviceKind string

const (
	DeviceKindRouterOSREST DeviceKind = "routeros-rest"
	DeviceKindRouterOSSNMP DeviceKind = "routeros-snmp"
)

// DeviceState is the reported state of a device in an aggregate snapshot.
type DeviceState string

const (
	DeviceStateConnected    DeviceState = "connected"
	DeviceStateError        DeviceState = "error"
	DeviceStateDisconnected DeviceState = "disconnected"
)

// PollReason is the coarse classification of a failed device poll.
type PollReason string

const (
	ReasonTimeout       PollReason = "timeout"
	ReasonRefused       PollReason = "refused"
	ReasonAuthFailed    PollReason = "auth-failed"
	ReasonUnreachable   PollReason = "unreachable"
	ReasonProtocolError PollReason = "protocol-error"
	ReasonUnknown       PollReason = "unknown"
)

// Device represents an access server in the device registry.
//
// Enabled is the administrative flag and is independent of reachability.
// LastCheckedAt and ConnectionError are diagnostic fields written by the
// poller; every other field belongs to the registry owner.
type Device struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Address         string     `json:"address"`
	Port            int        `json:"port"`
	Kind            DeviceKind `json:"kind"`
	Username        string     `json:"username,omitempty"`
	Password        string     `json:"-"`
	Enabled         bool       `json:"enabled"`
	LastSyncAt      time.Time  `json:"last_sync_at,omitzero"`
	LastCheckedAt   time.Time  `json:"last_checked_at,omitzero"`
	ConnectionError string     `json:"connection_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DeviceStatus is one device's entry in an aggregate snapshot.
type DeviceStatus struct {
	DeviceID    string      `json:"device_id"`
	DeviceName  string      `json:"device_name"`
	State       DeviceState `json:"state"`
	ActiveUsers int         `json:"active_users"`
	LastSync    time.Time   `json:"last_sync,omitzero"`
	LastChecked time.Time   `json:"last_checked,omitzero"`
	Error       string      `json:"error,omitempty"`
	Reason      PollReason  `json:"reason,omitempty"`
}
