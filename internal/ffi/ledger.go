package ffi

import (
	"errors"
	"sync"
)

var (
	ErrNullPointer    = errors.New("null string pointer")
	ErrUnknownPointer = errors.New("pointer was not issued by this library or was already freed")
)

// Ledger tracks strings handed across the C boundary so each one is freed
// exactly once.
type Ledger struct {
	mu     sync.Mutex
	issued map[uintptr]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{issued: make(map[uintptr]struct{})}
}

// Issue records p as owned by the caller.
func (l *Ledger) Issue(p uintptr) {
	if p == 0 {
		return
	}
	l.mu.Lock()
	l.issued[p] = struct{}{}
	l.mu.Unlock()
}

// Release removes p. Only a nil error allows the memory to be freed.
func (l *Ledger) Release(p uintptr) error {
	if p == 0 {
		return ErrNullPointer
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.issued[p]; !ok {
		return ErrUnknownPointer
	}
	delete(l.issued, p)
	return nil
}

// Outstanding returns the number of issued, not yet released strings.
func (l *Ledger) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.issued)
}
