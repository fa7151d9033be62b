package presence

import "errors"

// ErrSinkUnavailable is returned by RunCycle when the sink stayed
// disconnected after every reconnect attempt at the cycle boundary.
// The cycle is retried after a backoff; it is never fatal.
var ErrSinkUnavailable = errors.New("presence: sink unavailable")
