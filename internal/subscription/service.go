package subscription

import (
	"context"
	"database/sql"
	"fmt"
	"math"
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

// Service implements the subscription ledger and treasury administration.
//
// Subscriptions are paid up front: the full plan price goes straight to the
// device owner's balance, no escrow. Expiry is lazy; IsActive reports false
// past the end time even before Expire runs.
type Service struct {
	db        *sql.DB
	subs      Repository
	devices   registry.Repository
	treasury  balance.Repository
	journal   event.Journal
	publisher event.Publisher
	operator  string
	logger    Logger

	now func() time.Time
}

// NewService creates a new subscription service.
//
// Parameters:
//   - db: Open database handle for transaction control
//   - subs: Subscription repository
//   - devices: Device repository (existence, status, pricing)
//   - treasury: Balance and treasury repository
//   - journal: Event journal
//   - publisher: Post-commit event fan-out (may be nil)
//   - operator: Platform operator account (treasury administration)
//   - logger: Logger instance (may be nil)
func NewService(db *sql.DB, subs Repository, devices registry.Repository, treasury balance.Repository, journal event.Journal, publisher event.Publisher, operator string, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		db:        db,
		subs:      subs,
		devices:   devices,
		treasury:  treasury,
		journal:   journal,
		publisher: publisher,
		operator:  operator,
		logger:    logger,
		now:       time.Now,
	}
}

// Subscribe buys a time-boxed lease of a device for the caller.
//
// The payment must equal fee_per_day times the plan length exactly. The
// device owner is credited immediately.
//
// Returns the created subscription, or:
//   - ErrInvalidPlan for unknown plan values
//   - registry.ErrDeviceNotFound / registry.ErrDeviceInactive
//   - balance.ErrOverflow if the plan price overflows int64
//   - ErrPaymentMismatch if payment differs from the plan price
func (s *Service) Subscribe(ctx context.Context, caller, deviceID string, plan Plan, payment int64) (*Subscription, error) {
	if plan.Days() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting subscription: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	d, err := s.devices.WithTx(tx).Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, registry.ErrDeviceInactive
	}

	price, err := mulChecked(d.FeePerDay, plan.Days())
	if err != nil {
		return nil, err
	}
	if payment != price {
		return nil, ErrPaymentMismatch
	}

	now := s.now().UTC()
	sub := &Subscription{
		DeviceID:  deviceID,
		User:      caller,
		Plan:      plan,
		TotalFee:  payment,
		Status:    StatusActive,
		StartedAt: now,
		EndsAt:    now.Add(plan.Duration()),
	}
	if err := s.subs.WithTx(tx).Create(ctx, sub); err != nil {
		return nil, err
	}

	// Pay-up-front: the full price is deposited and credited to the
	// owner in the same unit of work.
	if payment > 0 {
		treasury := s.treasury.WithTx(tx)
		if err := treasury.RecordDeposit(ctx, payment); err != nil {
			return nil, err
		}
		if err := treasury.Credit(ctx, d.Owner, payment); err != nil {
			return nil, err
		}
	}

	ev := event.New(event.TypeSubscriptionCreated, event.EntitySubscription, subID(sub.ID), caller, map[string]any{
		"device_id": deviceID,
		"user":      caller,
		"plan":      string(plan),
		"total_fee": payment,
		"ends_at":   sub.EndsAt.Format(time.RFC3339),
	})
	ev.CreatedAt = now
	if err := s.journal.WithTx(tx).Create(ctx, ev); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing subscription: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ev)
	}

	s.logger.Info("subscription created", "subscription_id", sub.ID, "device_id", deviceID, "user", caller, "plan", string(plan), "total_fee", payment)
	return sub, nil
}

// Expire transitions a subscription to expired once its end time has
// passed. Any caller may trigger it; the transition is one-way.
//
// Returns:
//   - ErrSubscriptionNotFound if the ID does not exist
//   - ErrNotYetExpired before the end time
//   - ErrAlreadyExpired on repeat calls
func (s *Service) Expire(ctx context.Context, caller string, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting expiry: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	subs := s.subs.WithTx(tx)

	sub, err := subs.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status == StatusExpired {
		return ErrAlreadyExpired
	}
	now := s.now().UTC()
	if now.Before(sub.EndsAt) {
		return ErrNotYetExpired
	}

	if err := subs.MarkExpired(ctx, id); err != nil {
		return err
	}

	ev := event.New(event.TypeSubscriptionExpired, event.EntitySubscription, subID(id), caller, map[string]any{
		"device_id": sub.DeviceID,
		"user":      sub.User,
	})
	ev.CreatedAt = now
	if err := s.journal.WithTx(tx).Create(ctx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing expiry: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ev)
	}

	s.logger.Debug("subscription expired", "subscription_id", id, "caller", caller)
	return nil
}

// IsActive reports whether a subscription currently grants access.
// Lazy expiry: false past the end time even if Expire was never called.
func (s *Service) IsActive(ctx context.Context, id int64) (bool, error) {
	sub, err := s.subs.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return sub.Status == StatusActive && s.now().UTC().Before(sub.EndsAt), nil
}

// Get retrieves a subscription by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Subscription, error) {
	return s.subs.Get(ctx, id)
}

// ListByUser returns a user's subscriptions, newest first.
func (s *Service) ListByUser(ctx context.Context, user string) ([]*Subscription, error) {
	return s.subs.ListByUser(ctx, user)
}

// SetRegistrationReward sets the per-registration reward amount.
// Operator only. Zero disables rewards.
func (s *Service) SetRegistrationReward(ctx context.Context, caller string, amount int64) error {
	if caller != s.operator {
		return ErrNotOperator
	}

	return s.treasuryOp(ctx, func(treasury balance.Repository) (*event.Event, error) {
		if err := treasury.SetRegistrationReward(ctx, amount); err != nil {
			return nil, err
		}
		return event.New(event.TypeRewardSet, event.EntityTreasury, "treasury", caller, map[string]any{
			"registration_reward": amount,
		}), nil
	})
}

// Fund adds operator money to the reward pool.
// Operator only; the amount counts as a deposit.
func (s *Service) Fund(ctx context.Context, caller string, amount int64) error {
	if caller != s.operator {
		return ErrNotOperator
	}

	return s.treasuryOp(ctx, func(treasury balance.Repository) (*event.Event, error) {
		if err := treasury.AddToRewardPool(ctx, amount); err != nil {
			return nil, err
		}
		if err := treasury.RecordDeposit(ctx, amount); err != nil {
			return nil, err
		}
		return event.New(event.TypeTreasuryFunded, event.EntityTreasury, "treasury", caller, map[string]any{
			"amount": amount,
		}), nil
	})
}

// treasuryOp runs a treasury mutation and its event in one transaction.
func (s *Service) treasuryOp(ctx context.Context, fn func(balance.Repository) (*event.Event, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting treasury update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	ev, err := fn(s.treasury.WithTx(tx))
	if err != nil {
		return err
	}

	ev.CreatedAt = s.now().UTC()
	if err := s.journal.WithTx(tx).Create(ctx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing treasury update: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
	return nil
}

// subID renders a numeric subscription ID as an event entity ID.
func subID(id int64) string {
	return fmt.Sprintf("sub-%d", id)
}

// mulChecked multiplies two non-negative amounts, rejecting int64 overflow.
func mulChecked(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxInt64/b {
		return 0, balance.ErrOverflow
	}
	return a * b, nil
}
