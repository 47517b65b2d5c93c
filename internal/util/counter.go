package util

import "sync"

// SharedCounter is the process wide request counter. Every successful
// Increment closes the current change channel and installs a fresh one, so
// observers can block until the value moves instead of polling it.
type SharedCounter struct {
	mu      sync.Mutex
	counter int
	changed chan struct{}
}

func NewSharedCounter() *SharedCounter {
	return &SharedCounter{changed: make(chan struct{})}
}

// Increment adds one and returns the new value.
func (c *SharedCounter) Increment() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	if c.changed != nil {
		close(c.changed)
	}
	c.changed = make(chan struct{})
	return c.counter
}

func (c *SharedCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

// Watch returns the current value and a channel that is closed by the next
// Increment. Both are read under the same lock, so no increment can slip
// between the snapshot and the channel.
func (c *SharedCounter) Watch() (int, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.changed == nil {
		c.changed = make(chan struct{})
	}
	return c.counter, c.changed
}
