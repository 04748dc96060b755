package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/linkstat/pkg/models"
)

func TestLogger_NotNil(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewStore_Usable(t *testing.T) {
	db := NewStore(t)
	if db == nil {
		t.Fatal("expected non-nil store")
	}
	if err := db.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}

func TestNewRegistry_Migrated(t *testing.T) {
	devices, subs := NewRegistry(t)
	ctx := context.Background()

	got, err := devices.List(ctx)
	if err != nil {
		t.Fatalf("devices.List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(devices) = %d, want 0", len(got))
	}
	if _, err := subs.List(ctx); err != nil {
		t.Fatalf("subscribers.List: %v", err)
	}
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()
	start := c.Now()
	c.Advance(5 * time.Minute)
	if got := c.Now().Sub(start); got != 5*time.Minute {
		t.Errorf("Advance: elapsed = %v, want 5m", got)
	}
}

func TestNewDevice_Defaults(t *testing.T) {
	d := NewDevice()
	if d.ID == "" {
		t.Error("expected non-empty ID")
	}
	if !d.Enabled {
		t.Error("Enabled = false, want true")
	}
	if d.Kind != models.DeviceKindRouterOSREST {
		t.Errorf("Kind = %q, want %q", d.Kind, models.DeviceKindRouterOSREST)
	}
}

func TestNewDevice_WithOptions(t *testing.T) {
	d := NewDevice(
		WithDeviceID("nas-1"),
		WithName("core"),
		WithAddress("10.0.0.1", 8728),
		Disabled(),
	)
	if d.ID != "nas-1" || d.Name != "core" {
		t.Errorf("ID/Name = %q/%q, want nas-1/core", d.ID, d.Name)
	}
	if d.Address != "10.0.0.1" || d.Port != 8728 {
		t.Errorf("Address = %s:%d, want 10.0.0.1:8728", d.Address, d.Port)
	}
	if d.Enabled {
		t.Error("Enabled = true, want false")
	}
}
