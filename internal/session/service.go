package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meterlease/meterlease-core/internal/balance"
	"github.com/meterlease/meterlease-core/internal/event"
	"github.com/meterlease/meterlease-core/internal/registry"
)

// Logger is the interface the service needs for logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service implements the session ledger.
//
// Starting a session escrows the exact session fee; ending it releases the
// escrow to the device owner. Each device hosts at most one active session.
type Service struct {
	db        *sql.DB
	sessions  Repository
	devices   registry.Repository
	treasury  balance.Repository
	journal   event.Journal
	publisher event.Publisher
	logger    Logger

	now func() time.Time
}

// NewService creates a new session service.
//
// Parameters:
//   - db: Open database handle for transaction control
//   - sessions: Session repository
//   - devices: Device repository (existence, status, pricing)
//   - treasury: Balance and treasury repository (escrow accounting)
//   - journal: Event journal
//   - publisher: Post-commit event fan-out (may be nil)
//   - logger: Logger instance (may be nil)
func NewService(db *sql.DB, sessions Repository, devices registry.Repository, treasury balance.Repository, journal event.Journal, publisher event.Publisher, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		db:        db,
		sessions:  sessions,
		devices:   devices,
		treasury:  treasury,
		journal:   journal,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Start opens a metered session on a device for the caller.
//
// The payment must equal the device's session fee exactly; overpayment is
// rejected. The fee is escrowed with the session and counted as a deposit.
//
// Returns the created session, or:
//   - registry.ErrDeviceNotFound if the device does not exist
//   - registry.ErrDeviceInactive if the device is inactive
//   - ErrSessionExists if the device already has an active session
//   - ErrPaymentMismatch if payment differs from the session fee
func (s *Service) Start(ctx context.Context, caller, deviceID string, payment int64) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	d, err := s.devices.WithTx(tx).Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, registry.ErrDeviceInactive
	}

	sessions := s.sessions.WithTx(tx)
	if _, err := sessions.ActiveByDevice(ctx, deviceID); err == nil {
		return nil, ErrSessionExists
	} else if !errors.Is(err, ErrNoActiveSession) {
		return nil, err
	}

	if payment != d.SessionFee {
		return nil, ErrPaymentMismatch
	}

	now := s.now().UTC()
	sess := &Session{
		ID:        NewID(deviceID, caller, now),
		DeviceID:  deviceID,
		User:      caller,
		Fee:       payment,
		Active:    true,
		StartedAt: now,
	}
	if err := sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	// The escrowed fee enters the ledger now, so the deposit counter
	// moves at start, not at settlement.
	if payment > 0 {
		if err := s.treasury.WithTx(tx).RecordDeposit(ctx, payment); err != nil {
			return nil, err
		}
	}

	ev := event.New(event.TypeSessionStarted, event.EntitySession, sess.ID, caller, map[string]any{
		"device_id": deviceID,
		"user":      caller,
		"fee":       payment,
	})
	ev.CreatedAt = now
	if err := s.journal.WithTx(tx).Create(ctx, ev); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session start: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ev)
	}

	s.logger.Info("session started", "session_id", sess.ID, "device_id", deviceID, "user", caller, "fee", payment)
	return sess, nil
}

// End closes an active session and settles the escrowed fee to the
// device owner's balance.
//
// The session user and the device owner may both end a session.
//
// Returns the ended session, or:
//   - ErrSessionNotFound if the session does not exist
//   - ErrSessionEnded if it was already ended
//   - ErrNotParticipant if the caller is neither user nor owner
func (s *Service) End(ctx context.Context, caller, sessionID string) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ending session: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	sessions := s.sessions.WithTx(tx)

	sess, err := sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active {
		return nil, ErrSessionEnded
	}

	d, err := s.devices.WithTx(tx).Get(ctx, sess.DeviceID)
	if err != nil {
		return nil, err
	}
	if caller != sess.User && caller != d.Owner {
		return nil, ErrNotParticipant
	}

	now := s.now().UTC()
	if err := sessions.MarkEnded(ctx, sessionID, now); err != nil {
		return nil, err
	}
	sess.Active = false
	sess.EndedAt = &now

	// Escrow release: the held fee becomes withdrawable by the owner.
	if sess.Fee > 0 {
		if err := s.treasury.WithTx(tx).Credit(ctx, d.Owner, sess.Fee); err != nil {
			return nil, err
		}
	}

	ev := event.New(event.TypeSessionEnded, event.EntitySession, sess.ID, caller, map[string]any{
		"device_id":        sess.DeviceID,
		"user":             sess.User,
		"owner":            d.Owner,
		"fee":              sess.Fee,
		"duration_seconds": int64(now.Sub(sess.StartedAt).Seconds()),
	})
	ev.CreatedAt = now
	if err := s.journal.WithTx(tx).Create(ctx, ev); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session end: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ev)
	}

	s.logger.Info("session ended", "session_id", sess.ID, "device_id", sess.DeviceID, "owner", d.Owner, "fee", sess.Fee)
	return sess, nil
}

// Get retrieves a session by ID.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.sessions.Get(ctx, id)
}

// ActiveSessionOfDevice returns the device's active session,
// ErrNoActiveSession if there is none.
func (s *Service) ActiveSessionOfDevice(ctx context.Context, deviceID string) (*Session, error) {
	return s.sessions.ActiveByDevice(ctx, deviceID)
}
