package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session represents one exclusive metered lease of a device.
// This matches the sessions table in the initial schema migration.
type Session struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`

	// User is the account leasing the device.
	User string `json:"user"`

	// Fee is the amount escrowed for this session, released to the
	// device owner when the session ends.
	Fee int64 `json:"fee"`

	// Active is true while the lease holds the device. The schema
	// enforces at most one active session per device.
	Active bool `json:"active"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// NewID derives a session ID from the device, user, and start time.
// The same triple always produces the same ID.
func NewID(deviceID, user string, startedAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(deviceID))
	h.Write([]byte{'|'})
	h.Write([]byte(user))
	h.Write([]byte{'|'})
	h.Write([]byte(startedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}
