package server

import (
	"net"
	"sync"
)

// connTracker keeps the set of open client connections so shutdown can close
// connections that are parked in a read, and waits for their handlers.
type connTracker struct {
	mu       sync.Mutex
	open     map[net.Conn]struct{}
	total    int
	closed   bool
	handlers sync.WaitGroup
}

func newConnTracker() *connTracker {
	return &connTracker{open: make(map[net.Conn]struct{})}
}

// Add registers conn and its handler. It reports false once CloseAll has
// run, in which case the caller owns closing conn and must not start a
// handler.
func (c *connTracker) Add(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.open[conn] = struct{}{}
	c.total++
	c.handlers.Add(1)
	return true
}

// Done is called by the handler of conn when it returns.
func (c *connTracker) Done(conn net.Conn) {
	c.mu.Lock()
	delete(c.open, conn)
	c.mu.Unlock()
	c.handlers.Done()
}

// Wait blocks until every handler registered by Add has called Done.
func (c *connTracker) Wait() {
	c.handlers.Wait()
}

func (c *connTracker) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

func (c *connTracker) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *connTracker) CloseAll() {
	c.mu.Lock()
	conns := make([]net.Conn, 0, len(c.open))
	for conn := range c.open {
		conns = append(conns, conn)
	}
	c.closed = true
	c.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
