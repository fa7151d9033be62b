package scan

import (
	"context"
	"time"
)

// Logger defines the logging interface used by the scanners.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Advertisement is one device discovered by a broadcast scan.
type Advertisement struct {
	// Address is the advertiser's hardware address as reported by the radio.
	Address string `json:"address"`

	// Raw is the hex of the advertised 128-bit service UUID field, in
	// transmission (little-endian) order. Empty when none was advertised.
	Raw string `json:"raw,omitempty"`
}

// BroadcastResult is the outcome of one broadcast scan.
//
// A failed scan still yields a usable (empty or partial) result: callers
// treat it as "nothing observed". Failure is set only for logging.
type BroadcastResult struct {
	Entries []Advertisement
	Failure error
}

// Len returns the number of discovered entries.
func (r BroadcastResult) Len() int {
	return len(r.Entries)
}

// Status classifies a directed query.
type Status int

// Status values.
const (
	// StatusNotFound is a clean negative: the device did not answer.
	StatusNotFound Status = iota

	// StatusFound means the device answered.
	StatusFound

	// StatusFailed means the query could not be performed. For presence
	// purposes it counts as not found.
	StatusFailed
)

// String returns the status name used in logs.
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of a directed query.
type Outcome struct {
	Status Status

	// Name is the name the device answered with, if found.
	Name string

	// Err explains a StatusFailed outcome.
	Err error
}

// Found returns a positive outcome.
func Found(name string) Outcome {
	return Outcome{Status: StatusFound, Name: name}
}

// NotFound returns a clean negative outcome.
func NotFound() Outcome {
	return Outcome{Status: StatusNotFound}
}

// Failed returns an outcome for a query that could not be performed.
func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// IsFound reports whether the device answered.
func (o Outcome) IsFound() bool {
	return o.Status == StatusFound
}

// BroadcastScanner discovers advertising devices for a bounded duration.
// Implementations must return within roughly d even if ctx is not cancelled.
type BroadcastScanner interface {
	Scan(ctx context.Context, d time.Duration) BroadcastResult
}

// DirectQuerier asks a single address to identify itself within timeout.
type DirectQuerier interface {
	Query(ctx context.Context, address string, timeout time.Duration) Outcome
}
