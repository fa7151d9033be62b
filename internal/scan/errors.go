package scan

import "errors"

// Sensing errors. They never reach the scheduler as returned errors: they
// travel inside an Outcome or a BroadcastResult so a sensing failure is told
// apart from a plain negative result.
var (
	// ErrAdapterUnavailable indicates the radio could not be enabled or is down.
	ErrAdapterUnavailable = errors.New("scan: adapter unavailable")

	// ErrScanTimeout indicates the operation overran its bounded duration.
	ErrScanTimeout = errors.New("scan: timeout")

	// ErrToolUnavailable indicates the external query tool is missing or not executable.
	ErrToolUnavailable = errors.New("scan: tool unavailable")

	// ErrInvalidAddress indicates the address cannot be queried.
	ErrInvalidAddress = errors.New("scan: invalid address")

	// ErrBusy indicates the radio is in use by another operation.
	ErrBusy = errors.New("scan: adapter busy")

	// ErrQueryFailed indicates the query tool failed for an unclassified reason.
	ErrQueryFailed = errors.New("scan: query failed")
)
