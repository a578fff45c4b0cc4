package llm

import (
	"context"
	"sync"
)

// Cancels tracks the cancel function of the in-flight stream per session so
// adapters can implement [Adapter.Cancel] uniformly. Safe for concurrent
// use.
type Cancels struct {
	mu sync.Mutex
	m  map[string]context.CancelFunc
}

// NewCancels returns an empty registry.
func NewCancels() *Cancels {
	return &Cancels{m: make(map[string]context.CancelFunc)}
}

// Track registers the stream cancel function for sessionID, replacing any
// previous entry. A session has at most one in-flight stream.
func (c *Cancels) Track(sessionID string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.m[sessionID]; ok {
		prev()
	}
	c.m[sessionID] = cancel
}

// Release removes the entry without cancelling; called when a stream ends on
// its own.
func (c *Cancels) Release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, sessionID)
}

// Cancel stops the session's in-flight stream. Unknown ids are ignored.
func (c *Cancels) Cancel(sessionID string) {
	c.mu.Lock()
	cancel, ok := c.m[sessionID]
	delete(c.m, sessionID)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}
