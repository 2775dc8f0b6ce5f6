package balance

import "errors"

// Domain errors for the balance package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, balance.ErrNothingToWithdraw) {
//	    // handle empty balance case
//	}
var (
	// ErrInvalidAmount is returned when an amount is zero or negative
	// where a positive amount is required.
	ErrInvalidAmount = errors.New("balance: amount must be positive")

	// ErrOverflow is returned when an addition would exceed the int64 range.
	// The operation is rejected rather than wrapping around.
	ErrOverflow = errors.New("balance: amount overflow")

	// ErrNothingToWithdraw is returned when withdrawing a zero balance.
	ErrNothingToWithdraw = errors.New("balance: nothing to withdraw")

	// ErrTransferFailed is returned when the outbound payout is rejected.
	// The withdrawal is rolled back and the balance restored.
	ErrTransferFailed = errors.New("balance: transfer failed")

	// ErrInsufficientPool is returned when debiting more than the reward
	// pool holds.
	ErrInsufficientPool = errors.New("balance: reward pool insufficient")
)
