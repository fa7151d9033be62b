package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device name does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDuplicateName is returned when two devices share a name.
	ErrDuplicateName = errors.New("device: duplicate name")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty, too long,
	// or not usable as a topic segment.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidTransport is returned when a transport value is not recognised.
	ErrInvalidTransport = errors.New("device: invalid transport")

	// ErrInvalidAddress is returned when a hardware address is malformed.
	ErrInvalidAddress = errors.New("device: invalid address")
)
