package testutil

import (
	"context"
	"testing"

	"github.com/HerbHall/linkstat/internal/services"
	"github.com/HerbHall/linkstat/internal/store"
)

// NewStore creates an in-memory SQLiteStore for testing.
// The store is automatically closed when the test completes.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("testutil.NewStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewRegistry creates an in-memory store with the registry tables migrated
// and returns the device and subscriber repositories backed by it.
func NewRegistry(t *testing.T) (*services.SQLiteDeviceRepository, *services.SQLiteSubscriberRepository) {
	t.Helper()
	db := NewStore(t)
	if err := services.Migrate(context.Background(), db); err != nil {
		t.Fatalf("testutil.NewRegistry: %v", err)
	}
	return services.NewSQLiteDeviceRepository(db.DB()), services.NewSQLiteSubscriberRepository(db.DB())
}
