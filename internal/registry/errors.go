package registry

import "errors"

// Sentinel errors for the device registry.
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrDeviceExists is returned when registering an already-registered ID.
	ErrDeviceExists = errors.New("registry: device already registered")

	// ErrNotOwner is returned when the caller does not own the device.
	ErrNotOwner = errors.New("registry: caller is not the device owner")

	// ErrDeviceInactive is returned when an operation requires an active device.
	ErrDeviceInactive = errors.New("registry: device is inactive")

	// ErrInvalidDevice is returned when registration input is malformed.
	ErrInvalidDevice = errors.New("registry: invalid device data")

	// ErrInvalidFee is returned when a fee amount is negative.
	ErrInvalidFee = errors.New("registry: fee must not be negative")
)
