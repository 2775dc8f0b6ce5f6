package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Filter controls which journal entries to return.
type Filter struct {
	Type       Type   // optional: filter by event type
	EntityType string // optional: filter by entity type (device, session, ...)
	EntityID   string // optional: filter by specific entity ID
	Caller     string // optional: filter by caller account
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ListResult contains the paginated journal results.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Journal defines the interface for the append-only event journal.
type Journal interface {
	// WithTx returns a journal bound to the given transaction, so events
	// commit or roll back together with the state change they describe.
	WithTx(tx *sql.Tx) Journal

	// Create appends an event. ID and CreatedAt are generated if empty.
	Create(ctx context.Context, ev *Event) error

	// List returns events matching the filter, most recent first.
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// querier is the subset of sql.DB and sql.Tx used by the journal.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteJournal stores events in SQLite.
type SQLiteJournal struct {
	db querier
}

// NewSQLiteJournal creates a new event journal.
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db}
}

// WithTx returns a journal bound to the given transaction.
func (j *SQLiteJournal) WithTx(tx *sql.Tx) Journal {
	return &SQLiteJournal{db: tx}
}

// Create appends a new event. The ID and CreatedAt are generated if empty.
func (j *SQLiteJournal) Create(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = "evt-" + uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	fieldsJSON := "{}"
	if ev.Fields != nil {
		b, err := json.Marshal(ev.Fields)
		if err != nil {
			return fmt.Errorf("marshalling event fields: %w", err)
		}
		fieldsJSON = string(b)
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (id, type, entity_type, entity_id, caller, fields, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), ev.EntityType, ev.EntityID, ev.Caller,
		fieldsJSON,
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

// List returns events matching the filter, ordered by most recent first.
func (j *SQLiteJournal) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for journal queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Caller != "" {
		conditions = append(conditions, "caller = ?")
		args = append(args, filter.Caller)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := j.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, type, entity_type, entity_id, caller, fields, created_at FROM events %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var evType, fieldsJSON, createdAt string

		if err := rows.Scan(&ev.ID, &evType, &ev.EntityType,
			&ev.EntityID, &ev.Caller, &fieldsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		ev.Type = Type(evType)

		if fieldsJSON != "" && fieldsJSON != "{}" {
			var fields map[string]any
			if json.Unmarshal([]byte(fieldsJSON), &fields) == nil {
				ev.Fields = fields
			}
		}

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", createdAt, err)
		}
		ev.CreatedAt = t

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	if events == nil {
		events = []Event{}
	}

	return &ListResult{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
