package subscription

import "errors"

// Sentinel errors for the subscription ledger.
var (
	// ErrSubscriptionNotFound is returned when a subscription ID does
	// not exist.
	ErrSubscriptionNotFound = errors.New("subscription: subscription not found")

	// ErrInvalidPlan is returned for plan values other than day, week,
	// or month.
	ErrInvalidPlan = errors.New("subscription: invalid plan")

	// ErrNotYetExpired is returned when expiring before the end time.
	ErrNotYetExpired = errors.New("subscription: end time not reached")

	// ErrAlreadyExpired is returned when expiring twice.
	ErrAlreadyExpired = errors.New("subscription: already expired")

	// ErrNotOperator is returned when a treasury operation is called by
	// anyone but the platform operator.
	ErrNotOperator = errors.New("subscription: caller is not the operator")

	// ErrPaymentMismatch is returned when the payment does not equal
	// the plan price exactly.
	ErrPaymentMismatch = errors.New("subscription: payment does not match plan price")
)
