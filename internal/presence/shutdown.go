package presence

import (
	"context"
	"sync"
)

// Shutdown is a cooperative stop flag.
//
// Request is idempotent and safe from any goroutine. The engine polls
// Requested between devices and between cycles, and selects on Done while
// it waits; nothing in flight is aborted.
type Shutdown struct {
	once sync.Once
	done chan struct{}
}

// NewShutdown creates an unrequested shutdown flag.
func NewShutdown() *Shutdown {
	return &Shutdown{done: make(chan struct{})}
}

// Request asks the engine to stop.
func (s *Shutdown) Request() {
	s.once.Do(func() { close(s.done) })
}

// Requested reports whether Request has been called.
func (s *Shutdown) Requested() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done is closed once Request has been called.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}

// RequestOnDone calls Request when ctx is cancelled, typically by a
// termination signal. It returns immediately.
func (s *Shutdown) RequestOnDone(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Request()
		case <-s.done:
		}
	}()
}
