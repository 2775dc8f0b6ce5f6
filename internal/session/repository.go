package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for session persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sql.Tx) Repository

	// Create persists a new session.
	// Returns ErrSessionExists if the device already has an active one.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the ID does not exist.
	Get(ctx context.Context, id string) (*Session, error)

	// ActiveByDevice returns the device's active session.
	// Returns ErrNoActiveSession if there is none.
	ActiveByDevice(ctx context.Context, deviceID string) (*Session, error)

	// MarkEnded closes an active session at the given time.
	// Returns ErrSessionNotFound if no active session has that ID.
	MarkEnded(ctx context.Context, id string, endedAt time.Time) error

	// EscrowTotal returns the sum of fees held by active sessions.
	EscrowTotal(ctx context.Context) (int64, error)
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

const sessionColumns = `id, device_id, user, fee, active, started_at, ended_at`

// Create persists a new session.
// The partial unique index on active sessions enforces device exclusivity
// even if two units of work race.
func (r *SQLiteRepository) Create(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.DeviceID, s.User, s.Fee, boolToInt(s.Active),
		formatTime(s.StartedAt), nullableTime(s.EndedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	)

	s, err := scanSessionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return s, nil
}

// ActiveByDevice returns the device's active session.
func (r *SQLiteRepository) ActiveByDevice(ctx context.Context, deviceID string) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE device_id = ? AND active = 1`, deviceID,
	)

	s, err := scanSessionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("querying active session: %w", err)
	}
	return s, nil
}

// MarkEnded closes an active session at the given time.
func (r *SQLiteRepository) MarkEnded(ctx context.Context, id string, endedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0, ended_at = ?
		 WHERE id = ? AND active = 1`,
		formatTime(endedAt), id,
	)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking end result: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// EscrowTotal returns the sum of fees held by active sessions.
func (r *SQLiteRepository) EscrowTotal(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(fee), 0) FROM sessions WHERE active = 1",
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing escrow: %w", err)
	}
	return total, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSessionRow scans a single session row into a Session struct.
func scanSessionRow(row rowScanner) (*Session, error) {
	var (
		s         Session
		active    int
		startedAt string
		endedAt   sql.NullString
	)

	err := row.Scan(&s.ID, &s.DeviceID, &s.User, &s.Fee, &active, &startedAt, &endedAt)
	if err != nil {
		return nil, err
	}

	s.Active = active != 0

	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if endedAt.Valid {
		t, err := parseTime(endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing ended_at: %w", err)
		}
		s.EndedAt = &t
	}

	return &s, nil
}
