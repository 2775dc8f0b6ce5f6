// Package registry implements the device registry: identity, ownership,
// pricing, liveness, and lifecycle of leasable devices.
//
// The caller who registers a device becomes its owner. Ownership never
// changes; removal is a soft delete that keeps the row readable. Each
// registration may pay a reward from the treasury's reward pool to the
// owner, credited atomically with the device row.
package registry
