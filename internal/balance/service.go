package balance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

// Service implements withdrawal processing on top of the accounts repository.
type Service struct {
	db         *sql.DB
	accounts   Repository
	journal    event.Journal
	publisher  event.Publisher
	transferer Transferer
	logger     Logger
	now        func() time.Time
}

// NewService creates a new balance service.
//
// Parameters:
//   - db: Open database handle for transaction control
//   - accounts: Balance and treasury repository
//   - journal: Event journal (events commit with the withdrawal)
//   - publisher: Post-commit event fan-out (may be nil)
//   - transferer: Outbound payout implementation (nil falls back to NoopTransferer)
//   - logger: Logger instance (may be nil)
func NewService(db *sql.DB, accounts Repository, journal event.Journal, publisher event.Publisher, transferer Transferer, logger Logger) *Service {
	if transferer == nil {
		transferer = NoopTransferer{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		db:         db,
		accounts:   accounts,
		journal:    journal,
		publisher:  publisher,
		transferer: transferer,
		logger:     logger,
		now:        time.Now,
	}
}

// Balance returns the withdrawable balance for an owner.
func (s *Service) Balance(ctx context.Context, owner string) (int64, error) {
	return s.accounts.Balance(ctx, owner)
}

// Treasury returns the current treasury state.
func (s *Service) Treasury(ctx context.Context) (*Treasury, error) {
	return s.accounts.Treasury(ctx)
}

// Withdraw pays out the caller's entire balance.
//
// The balance is zeroed and the withdrawal recorded before the payout is
// attempted, all inside one transaction. A rejected payout aborts the
// transaction, restoring the balance in full.
//
// Returns the amount paid out, or:
//   - ErrNothingToWithdraw if the caller's balance is zero
//   - ErrTransferFailed if the payout was rejected (balance restored)
func (s *Service) Withdraw(ctx context.Context, caller string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting withdrawal: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	accounts := s.accounts.WithTx(tx)

	amount, err := accounts.Zero(ctx, caller)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrNothingToWithdraw
	}

	if err := accounts.RecordWithdrawal(ctx, amount); err != nil {
		return 0, err
	}

	ev := event.New(event.TypeWithdrawn, event.EntityBalance, caller, caller, map[string]any{
		"amount": amount,
	})
	ev.CreatedAt = s.now().UTC()
	if err := s.journal.WithTx(tx).Create(ctx, ev); err != nil {
		return 0, err
	}

	// Effects before interactions: the payout runs last, and failure
	// unwinds the zeroed balance with the transaction.
	if err := s.transferer.Transfer(ctx, caller, amount); err != nil {
		s.logger.Warn("withdrawal payout rejected", "owner", caller, "amount", amount, "error", err)
		if errors.Is(err, ErrTransferFailed) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing withdrawal: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ev)
	}

	s.logger.Info("withdrawal settled", "owner", caller, "amount", amount)
	return amount, nil
}
