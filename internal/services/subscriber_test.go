package services_test

import (
	"context"
	"testing"

	"github.com/HerbHall/linkstat/internal/services"
	"github.com/HerbHall/linkstat/internal/testutil"
	"github.com/HerbHall/linkstat/pkg/models"
)

func TestSQLiteSubscriberRepository_CreateListGet(t *testing.T) {
	_, repo := testutil.NewRegistry(t)
	ctx := context.Background()

	for _, s := range []models.Subscriber{
		testutil.NewSubscriber("carol", "nas-1"),
		testutil.NewSubscriber("alice", "nas-1"),
		{LoginName: "dave"},
	} {
		s := s
		if err := repo.Create(ctx, &s); err != nil {
			t.Fatalf("Create %s: %v", s.LoginName, err)
		}
	}

	subs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("len = %d, want 3", len(subs))
	}
	if subs[0].LoginName != "carol" || subs[2].LoginName != "dave" {
		t.Errorf("order = %s,%s,%s; want insertion order", subs[0].LoginName, subs[1].LoginName, subs[2].LoginName)
	}
	if subs[2].Status != models.SubscriberActive {
		t.Errorf("default Status = %q, want active", subs[2].Status)
	}
	if subs[2].ID == "" {
		t.Error("Create did not generate an ID")
	}

	got, err := repo.Get(ctx, "sub-alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DeviceID != "nas-1" {
		t.Errorf("DeviceID = %q, want nas-1", got.DeviceID)
	}
}

func TestSQLiteSubscriberRepository_Errors(t *testing.T) {
	_, repo := testutil.NewRegistry(t)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); err != services.ErrNotFound {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}

	a := testutil.NewSubscriber("alice", "")
	if err := repo.Create(ctx, &a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := models.Subscriber{LoginName: "alice"}
	if err := repo.Create(ctx, &dup); err != services.ErrAlreadyExists {
		t.Errorf("duplicate login Create = %v, want ErrAlreadyExists", err)
	}
}
