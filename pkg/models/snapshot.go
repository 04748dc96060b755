package models

import "time"

// Snapshot is the published result of one fleet poll cycle. A published
// snapshot is never modified; a refresh produces a new one.
type Snapshot struct {
	TotalActiveUsers int            `json:"total_active_users"`
	Devices          []DeviceStatus `json:"devices"`
	Sessions         []Session      `json:"sessions"`
	LastUpdated      time.Time      `json:"last_updated"`
	CycleDuration    Duration       `json:"cycle_duration"`
}

// Age reports how old the snapshot is relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.LastUpdated)
}

// Device returns the status entry for the given device ID.
func (s *Snapshot) Device(id string) (DeviceStatus, bool) {
	for _, d := range s.Devices {
		if d.DeviceID == id {
			return d, true
		}
	}
	return DeviceStatus{}, false
}

// DisabledDevices returns the set of device IDs reported as administratively
// disconnected.
func (s *Snapshot) DisabledDevices() map[string]bool {
	out := make(map[string]bool)
	for _, d := range s.Devices {
		if d.State == DeviceStateDisconnected {
			out[d.DeviceID] = true
		}
	}
	return out
}
