package transport

import (
	"context"
	"sync"
)

// Connection lets anyone interrupt the in-flight sync request, e.g because the ranges or filters
// changed and waiting for the long poll to finish would show stale data. The engine restarts
// the request immediately with whatever the lists say now.
type Connection struct {
	mu                       *sync.Mutex
	cancelOutstandingRequest context.CancelFunc
}

func NewConnection() *Connection {
	return &Connection{
		mu: &sync.Mutex{},
	}
}

// Abort cancels the in-flight request, if any. Safe to call at any time, from any goroutine.
func (c *Connection) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelOutstandingRequest != nil {
		c.cancelOutstandingRequest()
		c.cancelOutstandingRequest = nil
	}
}

// begin returns the context for the next request. It must be called before the request body is
// built: an Abort after begin cancels the request, an Abort before it happened before the body
// was read from the lists. Call the returned func when the request is done.
func (c *Connection) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelOutstandingRequest = cancel
	c.mu.Unlock()
	return ctx, func() {
		c.mu.Lock()
		c.cancelOutstandingRequest = nil
		c.mu.Unlock()
		cancel()
	}
}
