package subscription

import (
	"fmt"
	"time"
)

// Plan is a fixed-length subscription term.
type Plan string

// Plan constants.
const (
	PlanDay   Plan = "day"
	PlanWeek  Plan = "week"
	PlanMonth Plan = "month"
)

// ParsePlan validates a plan string.
func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanDay, PlanWeek, PlanMonth:
		return Plan(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, s)
	}
}

// Days returns the term length in days. Zero for unknown plans.
func (p Plan) Days() int64 {
	switch p {
	case PlanDay:
		return 1
	case PlanWeek:
		return 7
	case PlanMonth:
		return 30
	default:
		return 0
	}
}

// Duration returns the term length as a time.Duration.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.Days()) * 24 * time.Hour
}

// Status is the lifecycle state of a subscription.
type Status int

// Status constants. The transition is one-way.
const (
	StatusActive  Status = 0
	StatusExpired Status = 1
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Subscription represents a prepaid, time-boxed lease of a device.
// This matches the subscriptions table in the initial schema migration.
type Subscription struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"device_id"`

	// User is the account that bought the subscription.
	User string `json:"user"`

	Plan Plan `json:"plan"`

	// TotalFee is the full up-front price, already credited to the
	// device owner.
	TotalFee int64 `json:"total_fee"`

	Status Status `json:"status"`

	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`
}
