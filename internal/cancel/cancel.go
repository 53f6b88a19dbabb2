// Package cancel provides the cooperative interrupt flag shared by a session
// and whatever stream or process it is currently waiting on.
package cancel

import (
	"context"
	"sync"
)

// Coordinator is a resettable, one-shot interrupt signal.
//
// Cancel closes the channel returned by Done. Waiters select on Done at
// their suspension points (next stream item, process exit). Reset arms a
// fresh channel for the next turn.
type Coordinator struct {
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
}

// New returns a Coordinator in the not-cancelled state.
func New() *Coordinator {
	return &Coordinator{done: make(chan struct{})}
}

// Cancel requests cancellation. It reports whether this call set the flag;
// false means a cancellation was already pending.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelled {
		return false
	}
	c.cancelled = true
	close(c.done)
	return true
}

// IsCancelled reports whether cancellation is pending.
func (c *Coordinator) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Done returns a channel that is closed once Cancel is called.
// The channel belongs to the current turn; call Done again after Reset.
func (c *Coordinator) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Reset clears a pending cancellation.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cancelled {
		return
	}
	c.cancelled = false
	c.done = make(chan struct{})
}

// Context derives a context from parent that is also cancelled when the
// coordinator fires. The returned stop function must be called to release it.
func (c *Coordinator) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	done := c.Done()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
