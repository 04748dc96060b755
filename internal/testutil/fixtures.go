package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/linkstat/pkg/models"
)

// NewDevice returns an enabled RouterOS REST device with sensible defaults.
// Override fields with the option functions.
func NewDevice(opts ...func(*models.Device)) models.Device {
	d := models.Device{
		ID:        uuid.New().String(),
		Name:      "nas-test",
		Address:   "192.0.2.10",
		Port:      443,
		Kind:      models.DeviceKindRouterOSREST,
		Username:  "api",
		Password:  "secret",
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// WithDeviceID sets the device ID.
func WithDeviceID(id string) func(*models.Device) {
	return func(d *models.Device) { d.ID = id }
}

// WithName sets the device display name.
func WithName(name string) func(*models.Device) {
	return func(d *models.Device) { d.Name = name }
}

// WithAddress sets the device address and port.
func WithAddress(addr string, port int) func(*models.Device) {
	return func(d *models.Device) {
		d.Address = addr
		d.Port = port
	}
}

// WithKind sets the adapter kind.
func WithKind(k models.DeviceKind) func(*models.Device) {
	return func(d *models.Device) { d.Kind = k }
}

// Disabled marks the device administratively disabled.
func Disabled() func(*models.Device) {
	return func(d *models.Device) { d.Enabled = false }
}

// NewSubscriber returns an active subscriber with the given login, assigned
// to deviceID (which may be empty).
func NewSubscriber(login, deviceID string) models.Subscriber {
	return models.Subscriber{
		ID:        "sub-" + login,
		LoginName: login,
		Status:    models.SubscriberActive,
		DeviceID:  deviceID,
	}
}

// NewSession returns a session on device for login.
func NewSession(device models.Device, sessionID, login string, uptime time.Duration) models.Session {
	return models.Session{
		DeviceID:    device.ID,
		DeviceName:  device.Name,
		SessionID:   sessionID,
		LoginName:   login,
		PeerAddress: "10.10.0.1",
		Uptime:      models.Duration(uptime),
		ServiceType: "pppoe",
	}
}
