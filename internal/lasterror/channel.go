// Package lasterror keeps the most recent failure message, globally and per
// handle, so that callers on the far side of a C boundary can retrieve it
// after a call returned false or zero.
package lasterror

import "sync"

// Channel holds one global slot and one slot per key.
//
// Reads never clear a slot: the same message is returned until the next
// failure replaces it.
type Channel struct {
	mu     sync.RWMutex
	global string
	set    bool
	byKey  map[uint64]string
}

// New creates an empty channel.
func New() *Channel {
	return &Channel{byKey: make(map[uint64]string)}
}

// Set records msg as the latest error. A non-zero key also records it in
// that key's slot. Empty messages are ignored.
func (c *Channel) Set(key uint64, msg string) {
	if msg == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.global = msg
	c.set = true
	if key != 0 {
		c.byKey[key] = msg
	}
}

// SetKeyed records msg in the key's slot only.
func (c *Channel) SetKeyed(key uint64, msg string) {
	if msg == "" || key == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[key] = msg
}

// Last returns the latest error recorded by Set.
func (c *Channel) Last() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global, c.set
}

// LastFor returns the latest error recorded for key.
func (c *Channel) LastFor(key uint64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msg, ok := c.byKey[key]
	return msg, ok
}

// Forget drops the key's slot. The global slot is untouched.
func (c *Channel) Forget(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byKey, key)
}
