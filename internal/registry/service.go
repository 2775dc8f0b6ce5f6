package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meterlease/meterlease-core/internal/balance"
	"github.com/meterlease/meterlease-core/internal/event"
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

// Service implements device registry operations.
//
// Every mutation runs inside one transaction and journals its event before
// commit. The operator account may change device status alongside the owner;
// all other mutations are owner-only.
type Service struct {
	db        *sql.DB
	devices   Repository
	treasury  balance.Repository
	journal   event.Journal
	publisher event.Publisher
	operator  string
	logger    Logger

	now func() time.Time
}

// NewService creates a new registry service.
//
// Parameters:
//   - db: Open database handle for transaction control
//   - devices: Device repository
//   - treasury: Balance and treasury repository (registration rewards)
//   - journal: Event journal
//   - publisher: Post-commit event fan-out (may be nil)
//   - operator: Platform operator account
//   - logger: Logger instance (may be nil)
func NewService(db *sql.DB, devices Repository, treasury balance.Repository, journal event.Journal, publisher event.Publisher, operator string, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		db:        db,
		devices:   devices,
		treasury:  treasury,
		journal:   journal,
		publisher: publisher,
		operator:  operator,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates a device owned by the caller.
//
// If the treasury has a registration reward configured and the reward pool
// covers it, the reward is credited to the owner in the same transaction.
// A short pool skips the reward rather than failing the registration.
//
// Returns the created device, or:
//   - ErrInvalidDevice if ID or name is empty
//   - ErrInvalidFee if a fee is negative
//   - ErrDeviceExists if the ID is already registered
func (s *Service) Register(ctx context.Context, caller string, input RegisterInput) (*Device, error) {
	if input.ID == "" || input.Name == "" {
		return nil, ErrInvalidDevice
	}
	if input.SessionFee < 0 || input.FeePerDay < 0 {
		return nil, ErrInvalidFee
	}

	now := s.now().UTC()
	d := &Device{
		ID:          input.ID,
		Owner:       caller,
		Name:        input.Name,
		Description: input.Description,
		Type:        input.Type,
		PubKey:      input.PubKey,
		Active:      true,
		SessionFee:  input.SessionFee,
		FeePerDay:   input.FeePerDay,
		LastSeen:    &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting registration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := s.devices.WithTx(tx).Create(ctx, d); err != nil {
		return nil, err
	}

	events := []*event.Event{
		event.New(event.TypeDeviceRegistered, event.EntityDevice, d.ID, caller, map[string]any{
			"owner":       d.Owner,
			"name":        d.Name,
			"type":        d.Type,
			"session_fee": d.SessionFee,
			"fee_per_day": d.FeePerDay,
		}),
	}

	reward, err := s.creditRegistrationReward(ctx, tx, caller)
	if err != nil {
		return nil, err
	}
	if reward > 0 {
		events = append(events, event.New(event.TypeRewardCredited, event.EntityBalance, caller, caller, map[string]any{
			"amount":    reward,
			"device_id": d.ID,
		}))
	}

	journal := s.journal.WithTx(tx)
	for _, ev := range events {
		ev.CreatedAt = now
		if err := journal.Create(ctx, ev); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing registration: %w", err)
	}

	s.publish(events...)
	s.logger.Info("device registered", "device_id", d.ID, "owner", caller, "reward", reward)
	return d, nil
}

// creditRegistrationReward pays the configured reward from the pool to the
// owner. Returns the amount credited, zero when no reward is configured or
// the pool cannot cover it.
func (s *Service) creditRegistrationReward(ctx context.Context, tx *sql.Tx, owner string) (int64, error) {
	treasury := s.treasury.WithTx(tx)

	t, err := treasury.Treasury(ctx)
	if err != nil {
		return 0, err
	}
	if t.RegistrationReward <= 0 {
		return 0, nil
	}
	if t.RewardPool < t.RegistrationReward {
		s.logger.Warn("reward pool exhausted, skipping registration reward",
			"owner", owner, "reward", t.RegistrationReward, "pool", t.RewardPool)
		return 0, nil
	}

	if err := treasury.DebitRewardPool(ctx, t.RegistrationReward); err != nil {
		return 0, err
	}
	if err := treasury.Credit(ctx, owner, t.RegistrationReward); err != nil {
		return 0, err
	}
	return t.RegistrationReward, nil
}

// UpdateStatus activates or deactivates a device.
// The owner and the platform operator are both allowed.
func (s *Service) UpdateStatus(ctx context.Context, caller, id string, active bool) error {
	return s.mutate(ctx, caller, id, func(d *Device) (*event.Event, error) {
		if d.Owner != caller && caller != s.operator {
			return nil, ErrNotOwner
		}
		d.Active = active
		return event.New(event.TypeDeviceStatusChanged, event.EntityDevice, d.ID, caller, map[string]any{
			"active": active,
		}), nil
	})
}

// Heartbeat records that a device reported in.
// Owner only; inactive devices cannot heartbeat.
func (s *Service) Heartbeat(ctx context.Context, caller, id string) error {
	return s.mutate(ctx, caller, id, func(d *Device) (*event.Event, error) {
		if d.Owner != caller {
			return nil, ErrNotOwner
		}
		if !d.Active {
			return nil, ErrDeviceInactive
		}
		now := s.now().UTC()
		d.LastSeen = &now
		return event.New(event.TypeDeviceHeartbeat, event.EntityDevice, d.ID, caller, nil), nil
	})
}

// UpdateInfo applies a partial update to device metadata and pricing.
// Owner only; ID and owner are immutable.
func (s *Service) UpdateInfo(ctx context.Context, caller, id string, input UpdateInput) error {
	return s.mutate(ctx, caller, id, func(d *Device) (*event.Event, error) {
		if d.Owner != caller {
			return nil, ErrNotOwner
		}

		changed := map[string]any{}
		if input.Name != nil {
			if *input.Name == "" {
				return nil, ErrInvalidDevice
			}
			d.Name = *input.Name
			changed["name"] = d.Name
		}
		if input.Description != nil {
			d.Description = *input.Description
			changed["description"] = d.Description
		}
		if input.Type != nil {
			d.Type = *input.Type
			changed["type"] = d.Type
		}
		if input.PubKey != nil {
			d.PubKey = *input.PubKey
			changed["pub_key"] = d.PubKey
		}
		if input.SessionFee != nil {
			if *input.SessionFee < 0 {
				return nil, ErrInvalidFee
			}
			d.SessionFee = *input.SessionFee
			changed["session_fee"] = d.SessionFee
		}
		if input.FeePerDay != nil {
			if *input.FeePerDay < 0 {
				return nil, ErrInvalidFee
			}
			d.FeePerDay = *input.FeePerDay
			changed["fee_per_day"] = d.FeePerDay
		}

		return event.New(event.TypeDeviceUpdated, event.EntityDevice, d.ID, caller, changed), nil
	})
}

// Remove soft-deletes a device. Owner only.
// The device row survives for reads and the audit trail.
func (s *Service) Remove(ctx context.Context, caller, id string) error {
	return s.mutate(ctx, caller, id, func(d *Device) (*event.Event, error) {
		if d.Owner != caller {
			return nil, ErrNotOwner
		}
		if !d.Active {
			return nil, ErrDeviceInactive
		}
		d.Active = false
		return event.New(event.TypeDeviceRemoved, event.EntityDevice, d.ID, caller, nil), nil
	})
}

// mutate runs a read-modify-write on one device inside a transaction.
// The mutation returns the event to journal, or an error to abort.
func (s *Service) mutate(ctx context.Context, caller, id string, fn func(*Device) (*event.Event, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting device update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	devices := s.devices.WithTx(tx)

	d, err := devices.Get(ctx, id)
	if err != nil {
		return err
	}

	ev, err := fn(d)
	if err != nil {
		return err
	}

	d.UpdatedAt = s.now().UTC()
	if err := devices.Update(ctx, d); err != nil {
		return err
	}

	ev.CreatedAt = d.UpdatedAt
	if err := s.journal.WithTx(tx).Create(ctx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device update: %w", err)
	}

	s.publish(ev)
	s.logger.Debug("device updated", "device_id", id, "event", string(ev.Type), "caller", caller)
	return nil
}

// publish fans events out after commit.
func (s *Service) publish(events ...*event.Event) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		s.publisher.Publish(ev)
	}
}

// Get retrieves a device by ID. Inactive devices are still returned.
func (s *Service) Get(ctx context.Context, id string) (*Device, error) {
	return s.devices.Get(ctx, id)
}

// IsActive reports whether a device exists and is active.
func (s *Service) IsActive(ctx context.Context, id string) (bool, error) {
	d, err := s.devices.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return d.Active, nil
}

// ListByOwner returns all devices registered to an owner.
func (s *Service) ListByOwner(ctx context.Context, owner string) ([]*Device, error) {
	return s.devices.ListByOwner(ctx, owner)
}

// CountByOwner returns the number of devices registered to an owner.
func (s *Service) CountByOwner(ctx context.Context, owner string) (int, error) {
	return s.devices.CountByOwner(ctx, owner)
}
