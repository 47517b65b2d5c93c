package util

import (
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

func TestSharedCounterConcurrentIncrements(t *testing.T) {
	const workers = 16
	const perWorker = 500

	c := NewSharedCounter()
	seen := make(chan int, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				seen <- c.Increment()
			}
		}()
	}
	wg.Wait()
	close(seen)

	require.Equal(t, workers*perWorker, c.Value())

	unique := make(map[int]struct{}, workers*perWorker)
	for v := range seen {
		_, dup := unique[v]
		require.False(t, dup, "value %d returned twice", v)
		unique[v] = struct{}{}
	}
	require.Len(t, unique, workers*perWorker)
	for v := 1; v <= workers*perWorker; v++ {
		require.Contains(t, unique, v)
	}
}

func TestSharedCounterWatchNotifiesOnIncrement(t *testing.T) {
	c := NewSharedCounter()
	v, changed := c.Watch()
	require.Equal(t, 0, v)

	select {
	case <-changed:
		t.Fatal("channel closed before any increment")
	default:
	}

	require.Equal(t, 1, c.Increment())
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("increment did not signal watchers")
	}

	v, next := c.Watch()
	require.Equal(t, 1, v)
	select {
	case <-next:
		t.Fatal("fresh watch channel already closed")
	default:
	}
}

func TestSharedCounterZeroValue(t *testing.T) {
	var c SharedCounter
	require.Equal(t, 1, c.Increment())
	v, changed := c.Watch()
	require.Equal(t, 1, v)
	require.NotNil(t, changed)
}
