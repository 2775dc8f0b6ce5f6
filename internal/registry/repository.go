package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for device persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sql.Tx) Repository

	// Create persists a new device.
	// Returns ErrDeviceExists if the ID is already registered.
	Create(ctx context.Context, d *Device) error

	// Get retrieves a device by ID.
	// Returns ErrDeviceNotFound if the ID does not exist.
	Get(ctx context.Context, id string) (*Device, error)

	// Update persists mutable device fields.
	// Returns ErrDeviceNotFound if the ID does not exist.
	Update(ctx context.Context, d *Device) error

	// ListByOwner returns all devices registered to an owner,
	// ordered by creation time.
	ListByOwner(ctx context.Context, owner string) ([]*Device, error)

	// CountByOwner returns the number of devices registered to an owner.
	CountByOwner(ctx context.Context, owner string) (int, error)
}

// querier is the subset of sql.DB and sql.Tx used by the repository.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db querier
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *SQLiteRepository) WithTx(tx *sql.Tx) Repository {
	return &SQLiteRepository{db: tx}
}

const deviceColumns = `id, owner, name, description, type, pub_key, active,
	session_fee, fee_per_day, last_seen, created_at, updated_at`

// Create persists a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Owner, d.Name, d.Description, d.Type, d.PubKey,
		boolToInt(d.Active), d.SessionFee, d.FeePerDay,
		nullableTime(d.LastSeen), formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

// Get retrieves a device by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id,
	)

	d, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return d, nil
}

// Update persists mutable device fields.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices
		 SET name = ?, description = ?, type = ?, pub_key = ?, active = ?,
		     session_fee = ?, fee_per_day = ?, last_seen = ?, updated_at = ?
		 WHERE id = ?`,
		d.Name, d.Description, d.Type, d.PubKey, boolToInt(d.Active),
		d.SessionFee, d.FeePerDay, nullableTime(d.LastSeen),
		formatTime(d.UpdatedAt), d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ListByOwner returns all devices registered to an owner.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, owner string) ([]*Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE owner = ? ORDER BY created_at, id`, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	devices := []*Device{}
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// CountByOwner returns the number of devices registered to an owner.
func (r *SQLiteRepository) CountByOwner(ctx context.Context, owner string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM devices WHERE owner = ?", owner,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a single device row into a Device struct.
func scanDeviceRow(row rowScanner) (*Device, error) {
	var (
		d         Device
		active    int
		lastSeen  sql.NullString
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&d.ID, &d.Owner, &d.Name, &d.Description, &d.Type, &d.PubKey,
		&active, &d.SessionFee, &d.FeePerDay,
		&lastSeen, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Active = active != 0

	if lastSeen.Valid {
		t, err := parseTime(lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		d.LastSeen = &t
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &d, nil
}

// isUniqueConstraintError reports whether err is a SQLite unique
// constraint violation.
func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	// Fallback for wrapped drivers that lose the typed error.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// boolToInt converts a bool to the 0/1 integer form SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableTime converts an optional time to a driver-friendly value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// formatTime renders a timestamp in the canonical stored form.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a stored timestamp.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
