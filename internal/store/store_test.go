package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func newMemStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate_AppliesOnce(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	calls := 0
	migrations := []Migration{
		{
			Version:     1,
			Description: "create widgets",
			Up: func(tx *sql.Tx) error {
				calls++
				_, err := tx.Exec(`CREATE TABLE widgets (id TEXT PRIMARY KEY)`)
				return err
			},
		},
	}

	if err := s.Migrate(ctx, "test", migrations); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if err := s.Migrate(ctx, "test", migrations); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if calls != 1 {
		t.Errorf("Up called %d times, want 1", calls)
	}

	if _, err := s.DB().ExecContext(ctx, `INSERT INTO widgets (id) VALUES ('w1')`); err != nil {
		t.Errorf("insert into migrated table: %v", err)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Migrate(ctx, "test", []Migration{{
		Version:     1,
		Description: "fails",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE TABLE half (id TEXT)`); err != nil {
				return err
			}
			return boom
		},
	}})
	if !errors.Is(err, boom) {
		t.Fatalf("Migrate error = %v, want wrapping boom", err)
	}

	var count int
	if err := s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'half'`,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Error("table from failed migration still exists")
	}
}
