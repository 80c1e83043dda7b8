package ffi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	l := NewLedger()

	l.Issue(0)
	assert.Zero(t, l.Outstanding(), "NULL is never issued")

	l.Issue(0x1000)
	l.Issue(0x2000)
	assert.Equal(t, 2, l.Outstanding())

	require.NoError(t, l.Release(0x1000))
	assert.ErrorIs(t, l.Release(0x1000), ErrUnknownPointer)
	assert.ErrorIs(t, l.Release(0x3000), ErrUnknownPointer)
	assert.ErrorIs(t, l.Release(0), ErrNullPointer)
	assert.Equal(t, 1, l.Outstanding())
}

func TestLedger_ConcurrentReleaseOnce(t *testing.T) {
	l := NewLedger()
	l.Issue(0xbeef)

	var wg sync.WaitGroup
	var mu sync.Mutex
	released := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Release(0xbeef) == nil {
				mu.Lock()
				released++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, released)
}
