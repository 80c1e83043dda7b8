package lasterror

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannel_EmptyUntilFirstError(t *testing.T) {
	c := New()

	msg, ok := c.Last()
	assert.False(t, ok)
	assert.Empty(t, msg)

	_, ok = c.LastFor(1)
	assert.False(t, ok)
}

func TestChannel_ReadDoesNotClear(t *testing.T) {
	c := New()
	c.Set(7, "play: stream unavailable")

	first, ok := c.Last()
	assert.True(t, ok)
	second, ok := c.Last()
	assert.True(t, ok)
	assert.Equal(t, first, second)

	keyed, ok := c.LastFor(7)
	assert.True(t, ok)
	assert.Equal(t, first, keyed)
}

func TestChannel_LatestReplacesPrior(t *testing.T) {
	c := New()
	c.Set(1, "first")
	c.Set(2, "second")

	msg, _ := c.Last()
	assert.Equal(t, "second", msg)

	// per-key slots are not clobbered by other keys
	msg, _ = c.LastFor(1)
	assert.Equal(t, "first", msg)
}

func TestChannel_KeyedOnlyAndForget(t *testing.T) {
	c := New()
	c.Set(0, "global only")
	c.SetKeyed(3, "late failure")

	msg, _ := c.Last()
	assert.Equal(t, "global only", msg)

	msg, ok := c.LastFor(3)
	assert.True(t, ok)
	assert.Equal(t, "late failure", msg)

	c.Forget(3)
	_, ok = c.LastFor(3)
	assert.False(t, ok)

	_, ok = c.LastFor(0)
	assert.False(t, ok)
}

func TestChannel_IgnoresEmptyMessages(t *testing.T) {
	c := New()
	c.Set(1, "")
	_, ok := c.Last()
	assert.False(t, ok)
}
