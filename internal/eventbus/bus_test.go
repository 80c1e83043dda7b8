package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeValidation(t *testing.T) {
	b := New[int]()
	defer b.Close()

	assert.ErrorIs(t, b.Subscribe("nil", nil), ErrNilChannel)

	ch := make(chan int, 1)
	require.NoError(t, b.Subscribe("a", ch))
	assert.ErrorIs(t, b.Subscribe("a", ch), ErrSubscriberExists)

	_, err := b.SubscribeLatest("a")
	assert.ErrorIs(t, err, ErrSubscriberExists)

	assert.ErrorIs(t, b.Unsubscribe("missing"), ErrSubscriberNotFound)
}

func TestBus_DropNewCountsDrops(t *testing.T) {
	b := New[int]()
	defer b.Close()

	ch := make(chan int, 2)
	require.NoError(t, b.Subscribe("slow", ch))

	for i := 0; i < 5; i++ {
		b.Publish(i)
	}

	stats, err := b.Stats("slow")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Equal(t, uint64(3), stats.Dropped)
	assert.Equal(t, uint64(5), b.Published())

	assert.Equal(t, 0, <-ch)
	assert.Equal(t, 1, <-ch)
}

func TestBus_DropOldKeepsLatest(t *testing.T) {
	b := New[string]()
	defer b.Close()

	rx, err := b.SubscribeLatest("ui")
	require.NoError(t, err)

	_, ok := rx.TryReceive()
	assert.False(t, ok)

	b.Publish("buffering")
	b.Publish("playing")

	v, ok := rx.TryReceive()
	require.True(t, ok)
	assert.Equal(t, "playing", v)

	_, ok = rx.TryReceive()
	assert.False(t, ok, "value is consumed by a receive")

	stats, err := b.Stats("ui")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestBus_ReceiveUnblocksOnClose(t *testing.T) {
	b := New[int]()

	rx, err := b.SubscribeLatest("waiter")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, ok := rx.Receive()
		assert.False(t, ok)
	}()

	time.Sleep(20 * time.Millisecond)
	b.Close()
	wg.Wait()

	b.Publish(1) // no panic after close
	assert.ErrorIs(t, b.Subscribe("late", make(chan int)), ErrBusClosed)
}

func TestBus_ReceiveGetsPublishedValue(t *testing.T) {
	b := New[int]()
	defer b.Close()

	rx, err := b.SubscribeLatest("waiter")
	require.NoError(t, err)

	got := make(chan int, 1)
	go func() {
		v, _ := rx.Receive()
		got <- v
	}()

	b.Publish(42)
	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Receive did not return")
	}
}
