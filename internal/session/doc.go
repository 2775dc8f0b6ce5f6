// Package session implements the session ledger: exclusive, metered
// leases of registered devices.
//
// A session escrows the device's session fee at start. The escrow is held
// against the session row until the session ends, at which point it is
// credited to the device owner's withdrawable balance. A partial unique
// index guarantees at most one active session per device.
package session
