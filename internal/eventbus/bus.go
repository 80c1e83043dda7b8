// Package eventbus fans player events out to subscribers without ever
// blocking the publisher.
//
// Two drop policies are supported:
//   - DropNew: events go to a caller-owned channel; when it is full the new
//     event is dropped and counted.
//   - DropOld: the subscriber holds only the latest event; each publish
//     replaces the previous one.
package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrBusClosed          = errors.New("eventbus: bus is closed")
	ErrSubscriberExists   = errors.New("eventbus: subscriber already exists")
	ErrSubscriberNotFound = errors.New("eventbus: subscriber not found")
	ErrNilChannel         = errors.New("eventbus: nil channel provided")
	ErrReceiverClosed     = errors.New("eventbus: receiver is closed")
)

// DropPolicy defines how the bus handles events when a subscriber cannot keep up.
type DropPolicy int

const (
	DropNew DropPolicy = iota
	DropOld
)

// SubscriberStats tracks event distribution for one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

// Receiver provides blocking and non-blocking access to the latest event.
type Receiver[T any] interface {
	Receive() (T, bool)
	TryReceive() (T, bool)
	Close()
}

type subscriberHolder[T any] struct {
	id      string
	policy  DropPolicy
	sent    atomic.Uint64
	dropped atomic.Uint64

	// DropNew
	ch chan<- T

	// DropOld
	holder *latestHolder[T]
}

// Bus distributes values of type T to subscribers.
type Bus[T any] struct {
	mu             sync.RWMutex
	subscribers    map[string]*subscriberHolder[T]
	totalPublished atomic.Uint64
	closed         bool
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subscribers: make(map[string]*subscriberHolder[T])}
}

// Subscribe registers ch with the DropNew policy.
func (b *Bus[T]) Subscribe(id string, ch chan<- T) error {
	if ch == nil {
		return ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}

	b.subscribers[id] = &subscriberHolder[T]{id: id, policy: DropNew, ch: ch}
	return nil
}

// SubscribeLatest registers a DropOld subscriber.
func (b *Bus[T]) SubscribeLatest(id string) (Receiver[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	holder := &subscriberHolder[T]{id: id, policy: DropOld, holder: newLatestHolder[T]()}
	b.subscribers[id] = holder
	return holder.holder, nil
}

// Publish distributes v to all subscribers. It never blocks.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.totalPublished.Add(1)

	for _, holder := range b.subscribers {
		switch holder.policy {
		case DropNew:
			select {
			case holder.ch <- v:
				holder.sent.Add(1)
			default:
				holder.dropped.Add(1)
			}

		case DropOld:
			if holder.holder.set(v) {
				holder.dropped.Add(1)
			}
			holder.sent.Add(1)
		}
	}
}

// Unsubscribe removes a subscriber. DropNew channels are not closed; they
// belong to the caller.
func (b *Bus[T]) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	holder, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	if holder.holder != nil {
		holder.holder.Close()
	}
	delete(b.subscribers, id)
	return nil
}

// Stats returns statistics for a subscriber.
func (b *Bus[T]) Stats(id string) (SubscriberStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	holder, exists := b.subscribers[id]
	if !exists {
		return SubscriberStats{}, ErrSubscriberNotFound
	}
	return SubscriberStats{Sent: holder.sent.Load(), Dropped: holder.dropped.Load()}, nil
}

// Published returns the number of Publish calls accepted by the bus.
func (b *Bus[T]) Published() uint64 {
	return b.totalPublished.Load()
}

// Close shuts down the bus and releases every DropOld receiver.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, holder := range b.subscribers {
		if holder.holder != nil {
			holder.holder.Close()
		}
	}
	b.subscribers = nil
}

// latestHolder implements Receiver for the DropOld policy.
type latestHolder[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	value  T
	has    bool
	closed bool
}

func newLatestHolder[T any]() *latestHolder[T] {
	h := &latestHolder[T]{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// set stores v and reports whether an unread value was overwritten.
func (h *latestHolder[T]) set(v T) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	overwritten := h.has
	h.value = v
	h.has = true
	h.cond.Broadcast()
	return overwritten
}

// Receive blocks until a value is available or the receiver is closed.
// It consumes the value.
func (h *latestHolder[T]) Receive() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for !h.has && !h.closed {
		h.cond.Wait()
	}

	var zero T
	if !h.has {
		return zero, false
	}
	v := h.value
	h.value = zero
	h.has = false
	return v, true
}

// TryReceive consumes the latest value without blocking.
func (h *latestHolder[T]) TryReceive() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T
	if !h.has {
		return zero, false
	}
	v := h.value
	h.value = zero
	h.has = false
	return v, true
}

// Close wakes blocked receivers. Values published afterwards are ignored.
func (h *latestHolder[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.cond.Broadcast()
}
