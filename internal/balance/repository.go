package balance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
)

// Treasury holds platform-level funds and the lifetime conservation counters.
type Treasury struct {
	// RegistrationReward is the amount credited to an owner for each
	// device registration, funded from the reward pool. Zero disables
	// rewards.
	RegistrationReward int64 `json:"registration_reward"`

	// RewardPool is the operator-funded pool rewards are paid from.
	RewardPool int64 `json:"reward_pool"`

	// DepositsTotal is the lifetime sum of funds paid into the ledger.
	DepositsTotal int64 `json:"deposits_total"`

	// WithdrawalsTotal is the lifetime sum of funds paid out.
	WithdrawalsTotal int64 `json:"withdrawals_total"`
}

// Repository defines the interface for balance and treasury persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *sql.Tx) Repository

	// Balance returns the withdrawable balance for an owner.
	// Unknown owners have a zero balance.
	Balance(ctx context.Context, owner string) (int64, error)

	// Credit adds amount to an owner's balance.
	// Returns ErrOverflow if the balance would exceed the int64 range.
	Credit(ctx context.Context, owner string, amount int64) error

	// Zero sets an owner's balance to zero and returns the prior amount.
	Zero(ctx context.Context, owner string) (int64, error)

	// TotalBalances returns the sum of all withdrawable balances.
	TotalBalances(ctx context.Context) (int64, error)

	// Treasury returns the current treasury state.
	Treasury(ctx context.Context) (*Treasury, error)

	// SetRegistrationReward sets the per-registration reward amount.
	SetRegistrationReward(ctx context.Context, amount int64) error

	// AddToRewardPool adds amount to the reward pool.
	AddToRewardPool(ctx context.Context, amount int64) error

	// DebitRewardPool removes amount from the reward pool.
	// Returns ErrInsufficientPool if the pool holds less than amount.
	DebitRewardPool(ctx context.Context, amount int64) error

	// RecordDeposit adds amount to the lifetime deposit total.
	RecordDeposit(ctx context.Context, amount int64) error

	// RecordWithdrawal adds amount to the lifetime withdrawal total.
	RecordWithdrawal(ctx context.Context, amount int64) error
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

// Balance returns the withdrawable balance for an owner.
func (r *SQLiteRepository) Balance(ctx context.Context, owner string) (int64, error) {
	var amount int64
	err := r.db.QueryRowContext(ctx,
		"SELECT amount FROM balances WHERE owner = ?", owner,
	).Scan(&amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("querying balance: %w", err)
	}
	return amount, nil
}

// Credit adds amount to an owner's balance.
func (r *SQLiteRepository) Credit(ctx context.Context, owner string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	current, err := r.Balance(ctx, owner)
	if err != nil {
		return err
	}

	next, err := addChecked(current, amount)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO balances (owner, amount) VALUES (?, ?)",
		owner, next,
	)
	if err != nil {
		return fmt.Errorf("crediting balance: %w", err)
	}
	return nil
}

// Zero sets an owner's balance to zero and returns the prior amount.
func (r *SQLiteRepository) Zero(ctx context.Context, owner string) (int64, error) {
	current, err := r.Balance(ctx, owner)
	if err != nil {
		return 0, err
	}
	if current == 0 {
		return 0, nil
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE balances SET amount = 0 WHERE owner = ?", owner,
	)
	if err != nil {
		return 0, fmt.Errorf("zeroing balance: %w", err)
	}
	return current, nil
}

// TotalBalances returns the sum of all withdrawable balances.
func (r *SQLiteRepository) TotalBalances(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM balances",
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing balances: %w", err)
	}
	return total, nil
}

// Treasury returns the current treasury state.
func (r *SQLiteRepository) Treasury(ctx context.Context) (*Treasury, error) {
	var t Treasury
	err := r.db.QueryRowContext(ctx,
		`SELECT registration_reward, reward_pool, deposits_total, withdrawals_total
		 FROM treasury WHERE id = 1`,
	).Scan(&t.RegistrationReward, &t.RewardPool, &t.DepositsTotal, &t.WithdrawalsTotal)
	if err != nil {
		return nil, fmt.Errorf("querying treasury: %w", err)
	}
	return &t, nil
}

// SetRegistrationReward sets the per-registration reward amount.
// Zero is allowed and disables rewards.
func (r *SQLiteRepository) SetRegistrationReward(ctx context.Context, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	_, err := r.db.ExecContext(ctx,
		"UPDATE treasury SET registration_reward = ? WHERE id = 1", amount,
	)
	if err != nil {
		return fmt.Errorf("setting registration reward: %w", err)
	}
	return nil
}

// AddToRewardPool adds amount to the reward pool.
func (r *SQLiteRepository) AddToRewardPool(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	t, err := r.Treasury(ctx)
	if err != nil {
		return err
	}

	next, err := addChecked(t.RewardPool, amount)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE treasury SET reward_pool = ? WHERE id = 1", next,
	)
	if err != nil {
		return fmt.Errorf("funding reward pool: %w", err)
	}
	return nil
}

// DebitRewardPool removes amount from the reward pool.
func (r *SQLiteRepository) DebitRewardPool(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	t, err := r.Treasury(ctx)
	if err != nil {
		return err
	}
	if t.RewardPool < amount {
		return ErrInsufficientPool
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE treasury SET reward_pool = ? WHERE id = 1", t.RewardPool-amount,
	)
	if err != nil {
		return fmt.Errorf("debiting reward pool: %w", err)
	}
	return nil
}

// RecordDeposit adds amount to the lifetime deposit total.
func (r *SQLiteRepository) RecordDeposit(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	t, err := r.Treasury(ctx)
	if err != nil {
		return err
	}

	next, err := addChecked(t.DepositsTotal, amount)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE treasury SET deposits_total = ? WHERE id = 1", next,
	)
	if err != nil {
		return fmt.Errorf("recording deposit: %w", err)
	}
	return nil
}

// RecordWithdrawal adds amount to the lifetime withdrawal total.
func (r *SQLiteRepository) RecordWithdrawal(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	t, err := r.Treasury(ctx)
	if err != nil {
		return err
	}

	next, err := addChecked(t.WithdrawalsTotal, amount)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE treasury SET withdrawals_total = ? WHERE id = 1", next,
	)
	if err != nil {
		return fmt.Errorf("recording withdrawal: %w", err)
	}
	return nil
}

// addChecked adds two non-negative amounts, rejecting int64 overflow.
func addChecked(a, b int64) (int64, error) {
	if b > math.MaxInt64-a {
		return 0, ErrOverflow
	}
	return a + b, nil
}
