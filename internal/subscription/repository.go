package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for subscription persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sql.Tx) Repository

	// Create persists a new subscription and assigns its ID.
	Create(ctx context.Context, s *Subscription) error

	// Get retrieves a subscription by ID.
	// Returns ErrSubscriptionNotFound if the ID does not exist.
	Get(ctx context.Context, id int64) (*Subscription, error)

	// MarkExpired transitions an active subscription to expired.
	// Returns ErrAlreadyExpired if it is not active.
	MarkExpired(ctx context.Context, id int64) error

	// ListByUser returns a user's subscriptions, newest first.
	ListByUser(ctx context.Context, user string) ([]*Subscription, error)
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

const subscriptionColumns = `id, device_id, user, plan, total_fee, status, started_at, ends_at`

// Create persists a new subscription and assigns its ID.
func (r *SQLiteRepository) Create(ctx context.Context, s *Subscription) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (device_id, user, plan, total_fee, status, started_at, ends_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.DeviceID, s.User, string(s.Plan), s.TotalFee, int(s.Status),
		formatTime(s.StartedAt), formatTime(s.EndsAt),
	)
	if err != nil {
		return fmt.Errorf("creating subscription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading subscription id: %w", err)
	}
	s.ID = id
	return nil
}

// Get retrieves a subscription by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id,
	)

	s, err := scanSubscriptionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return s, nil
}

// MarkExpired transitions an active subscription to expired.
func (r *SQLiteRepository) MarkExpired(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE subscriptions SET status = ? WHERE id = ? AND status = ?",
		int(StatusExpired), id, int(StatusActive),
	)
	if err != nil {
		return fmt.Errorf("expiring subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking expire result: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyExpired
	}
	return nil
}

// ListByUser returns a user's subscriptions, newest first.
func (r *SQLiteRepository) ListByUser(ctx context.Context, user string) ([]*Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user = ? ORDER BY id DESC`, user,
	)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []*Subscription{}
	for rows.Next() {
		s, err := scanSubscriptionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions: %w", err)
	}
	return subs, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSubscriptionRow scans a single subscription row.
func scanSubscriptionRow(row rowScanner) (*Subscription, error) {
	var (
		s         Subscription
		plan      string
		status    int
		startedAt string
		endsAt    string
	)

	err := row.Scan(&s.ID, &s.DeviceID, &s.User, &plan, &s.TotalFee, &status, &startedAt, &endsAt)
	if err != nil {
		return nil, err
	}

	s.Plan = Plan(plan)
	s.Status = Status(status)

	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if s.EndsAt, err = parseTime(endsAt); err != nil {
		return nil, fmt.Errorf("parsing ends_at: %w", err)
	}

	return &s, nil
}

// formatTime renders a timestamp in the canonical stored form.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a stored timestamp.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
