package registry

import "time"

// Device represents a leasable metering device and its pricing.
// This matches the devices table in the initial schema migration.
type Device struct {
	// Identity
	ID    string `json:"id"`
	Owner string `json:"owner"`

	// Descriptive metadata
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`

	// PubKey is the device's public key, used by clients to verify
	// signed meter readings. Opaque to the ledger.
	PubKey string `json:"pub_key,omitempty"`

	// Active is false once the device has been removed (soft delete)
	// or suspended by its owner. Inactive devices cannot host sessions
	// or subscriptions but remain readable.
	Active bool `json:"active"`

	// Pricing in the smallest currency unit.
	SessionFee int64 `json:"session_fee"`
	FeePerDay  int64 `json:"fee_per_day"`

	// LastSeen is the time of the most recent heartbeat, nil if the
	// device has never reported in since registration.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterInput carries the fields a caller supplies at registration.
// The caller becomes the owner; Active and LastSeen are set by the service.
type RegisterInput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	PubKey      string `json:"pub_key,omitempty"`
	SessionFee  int64  `json:"session_fee"`
	FeePerDay   int64  `json:"fee_per_day"`
}

// UpdateInput carries a partial device update. Nil fields are left
// unchanged. ID and owner are immutable.
type UpdateInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Type        *string `json:"type,omitempty"`
	PubKey      *string `json:"pub_key,omitempty"`
	SessionFee  *int64  `json:"session_fee,omitempty"`
	FeePerDay   *int64  `json:"fee_per_day,omitempty"`
}
