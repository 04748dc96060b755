package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/linkstat/internal/services"
	"github.com/HerbHall/linkstat/internal/testutil"
	"github.com/HerbHall/linkstat/pkg/models"
)

func TestSQLiteDeviceRepository_CreateAndGet(t *testing.T) {
	repo, _ := testutil.NewRegistry(t)
	ctx := context.Background()

	d := testutil.NewDevice(
		testutil.WithName("nas-north"),
		testutil.WithAddress("10.0.0.1", 8443),
		testutil.WithKind(models.DeviceKindRouterOSSNMP),
	)
	if err := repo.Create(ctx, &d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "nas-north" {
		t.Errorf("Name = %q, want %q", got.Name, "nas-north")
	}
	if got.Address != "10.0.0.1" || got.Port != 8443 {
		t.Errorf("Address = %s:%d, want 10.0.0.1:8443", got.Address, got.Port)
	}
	if got.Kind != models.DeviceKindRouterOSSNMP {
		t.Errorf("Kind = %q, want %q", got.Kind, models.DeviceKindRouterOSSNMP)
	}
	if got.Password != "secret" {
		t.Errorf("Password = %q, want %q", got.Password, "secret")
	}
	if !got.Enabled {
		t.Error("Enabled = false, want true")
	}
	if !got.LastCheckedAt.IsZero() {
		t.Errorf("LastCheckedAt = %v, want zero", got.LastCheckedAt)
	}
}

func TestSQLiteDeviceRepository_CreateGeneratesID(t *testing.T) {
	repo, _ := testutil.NewRegistry(t)

	d := testutil.NewDevice()
	d.ID = ""
	d.Kind = ""
	if err := repo.Create(context.Background(), &d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID == "" {
		t.Error("Create did not generate an ID")
	}
	if d.Kind != models.DeviceKindRouterOSREST {
		t.Errorf("Kind = %q, want default %q", d.Kind, models.DeviceKindRouterOSREST)
	}
}

func TestSQLiteDeviceRepository_CreateDuplicate(t *testing.T) {
	repo, _ := testutil.NewRegistry(t)
	ctx := context.Background()

	d := testutil.NewDevice(testutil.WithDeviceID("nas-1"))
	if err := repo.Create(ctx, &d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := testutil.NewDevice(testutil.WithDeviceID("nas-1"))
	if err := repo.Create(ctx, &dup); err != services.ErrAlreadyExists {
		t.Errorf("duplicate Create = %v, want ErrAlreadyExists", err)
	}
}

func TestSQLiteDeviceRepository_GetNotFound(t *testing.T) {
	repo, _ := testutil.NewRegistry(t)

	_, err := repo.Get(context.Background(), "nonexistent-id")
	if err != services.ErrNotFound {
		t.Errorf("Get nonexistent = %v, want ErrNotFound", err)
	}
}

func TestSQLiteDeviceRepository_ListPreservesInsertionOrder(t *testing.T) {
	repo, _ := testutil.NewRegistry(t)
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		d := testutil.NewDevice(testutil.WithDeviceID(id), testutil.WithName(id))
		if id == "alpha" {
			d.Enabled = false
		}
		if err := repo.Create(ctx, &d); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("List[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
	if got[1].Enabled {
		t.Error("alpha Enabled = true, want false")
	}
}

func TestSQLiteDeviceRepository_RecordPoll(t *testing.T) {
	repo, _ := testutil.NewRegistry(t)
	ctx := context.Background()

	d := testutil.NewDevice()
	if err := repo.Create(ctx, &d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	checked := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.RecordPoll(ctx, d.ID, checked, "connection refused"); err != nil {
		t.Fatalf("RecordPoll failure: %v", err)
	}
	got, err := repo.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.LastCheckedAt.Equal(checked) {
		t.Errorf("LastCheckedAt = %v, want %v", got.LastCheckedAt, checked)
	}
	if got.ConnectionError != "connection refused" {
		t.Errorf("ConnectionError = %q, want %q", got.ConnectionError, "connection refused")
	}

	if err := repo.RecordPoll(ctx, d.ID, checked.Add(time.Minute), ""); err != nil {
		t.Fatalf("RecordPoll success: %v", err)
	}
	got, _ = repo.Get(ctx, d.ID)
	if got.ConnectionError != "" {
		t.Errorf("ConnectionError = %q after success, want empty", got.ConnectionError)
	}
}

func TestSQLiteDeviceRepository_RecordPollNotFound(t *testing.T) {
	repo, _ := testutil.NewRegistry(t)

	err := repo.RecordPoll(context.Background(), "missing", time.Now(), "")
	if err != services.ErrNotFound {
		t.Errorf("RecordPoll missing = %v, want ErrNotFound", err)
	}
}
