package types

import "sync"

// CancelToken is a one-shot cancellation latch shared between the session
// orchestrator and streaming adapters. It is edge-triggered on the first
// Cancel call and stays set for the lifetime of the session.
//
// Consumers may either poll IsCancelled at loop boundaries or select on
// Done for wait-style integration. All methods are safe for concurrent use.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken returns a fresh, unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel sets the latch. Idempotent; subsequent calls are no-ops.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// IsCancelled reports whether the latch has been set.
func (t *CancelToken) IsCancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the latch is set.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}
