package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/linkstat/pkg/models"
	"github.com/google/uuid"
)

// DeviceRepository provides access to the device registry.
type DeviceRepository interface {
	// List returns every device in registry order.
	List(ctx context.Context) ([]models.Device, error)

	// Get returns a single device by ID.
	Get(ctx context.Context, id string) (*models.Device, error)

	// Create inserts a new device. If device.ID is empty, a UUID is generated.
	Create(ctx context.Context, device *models.Device) error

	// RecordPoll stores the outcome of a poll attempt. An empty connErr
	// clears the previously recorded error.
	RecordPoll(ctx context.Context, id string, checkedAt time.Time, connErr string) error
}

// Compile-time interface guard.
var _ DeviceRepository = (*SQLiteDeviceRepository)(nil)

// SQLiteDeviceRepository implements DeviceRepository on the devices table.
type SQLiteDeviceRepository struct {
	db *sql.DB
}

// NewSQLiteDeviceRepository creates a DeviceRepository. Call Migrate first.
func NewSQLiteDeviceRepository(db *sql.DB) *SQLiteDeviceRepository {
	return &SQLiteDeviceRepository{db: db}
}

const deviceColumns = `id, name, address, port, kind, username, password, enabled,
	last_sync_at, last_checked_at, connection_error, created_at`

// List orders by rowid so registry order is insertion order.
func (r *SQLiteDeviceRepository) List(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := []models.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return devices, nil
}

func (r *SQLiteDeviceRepository) Get(ctx context.Context, id string) (*models.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device %q: %w", id, err)
	}
	return d, nil
}

func (r *SQLiteDeviceRepository) Create(ctx context.Context, device *models.Device) error {
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	if device.Kind == "" {
		device.Kind = models.DeviceKindRouterOSREST
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (
			id, name, address, port, kind, username, password, enabled,
			last_sync_at, last_checked_at, connection_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		device.ID, device.Name, device.Address, device.Port, string(device.Kind),
		device.Username, device.Password, device.Enabled,
		nullTime(device.LastSyncAt), nullTime(device.LastCheckedAt),
		device.ConnectionError, device.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create device: %w", err)
	}
	return nil
}

func (r *SQLiteDeviceRepository) RecordPoll(ctx context.Context, id string, checkedAt time.Time, connErr string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_checked_at = ?, connection_error = ? WHERE id = ?`,
		checkedAt.UTC(), connErr, id)
	if err != nil {
		return fmt.Errorf("record poll for device %q: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var d models.Device
	var kind string
	var lastSync, lastChecked sql.NullTime
	err := row.Scan(
		&d.ID, &d.Name, &d.Address, &d.Port, &kind, &d.Username, &d.Password, &d.Enabled,
		&lastSync, &lastChecked, &d.ConnectionError, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Kind = models.DeviceKind(kind)
	if lastSync.Valid {
		d.LastSyncAt = lastSync.Time
	}
	if lastChecked.Valid {
		d.LastCheckedAt = lastChecked.Time
	}
	return &d, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
