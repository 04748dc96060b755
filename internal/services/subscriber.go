package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HerbHall/linkstat/pkg/models"
	"github.com/google/uuid"
)

// SubscriberRepository provides read access to the subscriber roster, plus
// Create for seeding.
type SubscriberRepository interface {
	// List returns the full roster in insertion order.
	List(ctx context.Context) ([]models.Subscriber, error)

	// Get returns a single subscriber by ID.
	Get(ctx context.Context, id string) (*models.Subscriber, error)

	// Create inserts a subscriber. If sub.ID is empty, a UUID is generated.
	Create(ctx context.Context, sub *models.Subscriber) error
}

// Compile-time interface guard.
var _ SubscriberRepository = (*SQLiteSubscriberRepository)(nil)

// SQLiteSubscriberRepository implements SubscriberRepository on the
// subscribers table.
type SQLiteSubscriberRepository struct {
	db *sql.DB
}

// NewSQLiteSubscriberRepository creates a SubscriberRepository. Call Migrate
// first.
func NewSQLiteSubscriberRepository(db *sql.DB) *SQLiteSubscriberRepository {
	return &SQLiteSubscriberRepository{db: db}
}

func (r *SQLiteSubscriberRepository) List(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, login_name, status, device_id FROM subscribers ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	subs := []models.Subscriber{}
	for rows.Next() {
		var s models.Subscriber
		var status string
		if err := rows.Scan(&s.ID, &s.LoginName, &status, &s.DeviceID); err != nil {
			return nil, fmt.Errorf("scan subscriber row: %w", err)
		}
		s.Status = models.SubscriberStatus(status)
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return subs, nil
}

func (r *SQLiteSubscriberRepository) Get(ctx context.Context, id string) (*models.Subscriber, error) {
	var s models.Subscriber
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, login_name, status, device_id FROM subscribers WHERE id = ?`, id,
	).Scan(&s.ID, &s.LoginName, &status, &s.DeviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get subscriber %q: %w", id, err)
	}
	s.Status = models.SubscriberStatus(status)
	return &s, nil
}

func (r *SQLiteSubscriberRepository) Create(ctx context.Context, sub *models.Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.Status == "" {
		sub.Status = models.SubscriberActive
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscribers (id, login_name, status, device_id) VALUES (?, ?, ?, ?)`,
		sub.ID, sub.LoginName, string(sub.Status), sub.DeviceID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}
