package session

import "errors"

// Sentinel errors for the session ledger.
var (
	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrSessionExists is returned when the device already has an
	// active session.
	ErrSessionExists = errors.New("session: device already has an active session")

	// ErrSessionEnded is returned when ending an already-ended session.
	ErrSessionEnded = errors.New("session: session already ended")

	// ErrNoActiveSession is returned when a device has no active session.
	ErrNoActiveSession = errors.New("session: no active session for device")

	// ErrNotParticipant is returned when the caller is neither the
	// session user nor the device owner.
	ErrNotParticipant = errors.New("session: caller is not a session participant")

	// ErrPaymentMismatch is returned when the payment does not equal
	// the device's session fee exactly.
	ErrPaymentMismatch = errors.New("session: payment does not match session fee")
)
