package threshold

import (
	"context"
	"github.com/ravan/echo-counter/internal/util"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

const expected = "Reached 5 total requests (note from mid-state: reached 3 requests)"

func TestPollTransitions(t *testing.T) {
	w, err := NewWaiter(3, 5)
	require.NoError(t, err)

	for _, v := range []int{0, 1, 2} {
		status, _ := w.Poll(v)
		require.Equal(t, Wait, status)
		require.Equal(t, Start, w.Phase())
	}

	status, _ := w.Poll(3)
	require.Equal(t, Again, status)
	require.Equal(t, Mid, w.Phase())

	status, _ = w.Poll(4)
	require.Equal(t, Wait, status)

	status, result := w.Poll(5)
	require.Equal(t, Ready, status)
	require.Equal(t, expected, result)
	require.Equal(t, Done, w.Phase())

	// Done keeps returning the cached result
	status, result = w.Poll(0)
	require.Equal(t, Ready, status)
	require.Equal(t, expected, result)
}

func TestPollJumpPastBothThresholds(t *testing.T) {
	w, err := NewWaiter(3, 5)
	require.NoError(t, err)

	status, _ := w.Poll(9)
	require.Equal(t, Again, status)
	status, result := w.Poll(9)
	require.Equal(t, Ready, status)
	require.Equal(t, expected, result)
}

func TestNewWaiterValidatesThresholds(t *testing.T) {
	_, err := NewWaiter(0, 5)
	require.Error(t, err)
	_, err = NewWaiter(5, 5)
	require.Error(t, err)

	w, err := NewWaiter(10, 20)
	require.NoError(t, err)
	w.Poll(10)
	_, result := w.Poll(20)
	require.Equal(t, "Reached 20 total requests (note from mid-state: reached 10 requests)", result)
}

func TestWaitResolvesAfterIncrements(t *testing.T) {
	counter := util.NewSharedCounter()
	w, err := NewWaiter(3, 5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan string, 1)
	go func() {
		result, err := w.Wait(ctx, counter)
		require.NoError(t, err)
		done <- result
	}()

	for i := 0; i < 4; i++ {
		counter.Increment()
	}
	select {
	case <-done:
		t.Fatal("resolved before the second threshold")
	case <-time.After(50 * time.Millisecond):
	}

	counter.Increment()
	select {
	case result := <-done:
		require.Equal(t, expected, result)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter did not resolve")
	}

	result, ok := w.Result()
	require.True(t, ok)
	require.Equal(t, expected, result)

	// asking again returns the cached result without blocking
	again, err := w.Wait(context.Background(), counter)
	require.NoError(t, err)
	require.Equal(t, expected, again)
}

func TestWaitResolvesWhenCounterAlreadyPast(t *testing.T) {
	counter := util.NewSharedCounter()
	for i := 0; i < 7; i++ {
		counter.Increment()
	}
	w, err := NewWaiter(3, 5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := w.Wait(ctx, counter)
	require.NoError(t, err)
	require.Equal(t, expected, result)
}

func TestWaitNeverResolvesBelowSecondThreshold(t *testing.T) {
	counter := util.NewSharedCounter()
	for i := 0; i < 4; i++ {
		counter.Increment()
	}
	w, err := NewWaiter(3, 5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = w.Wait(ctx, counter)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, Mid, w.Phase())
	_, ok := w.Result()
	require.False(t, ok)
}

func TestWaitResolvesOnceUnderConcurrentLoad(t *testing.T) {
	counter := util.NewSharedCounter()
	w, err := NewWaiter(3, 5)
	require.NoError(t, err)

	var resolved sync.WaitGroup
	results := make(chan string, 1)
	resolved.Add(1)
	go func() {
		defer resolved.Done()
		result, err := w.Wait(context.Background(), counter)
		require.NoError(t, err)
		results <- result
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				counter.Increment()
			}
		}()
	}
	wg.Wait()
	resolved.Wait()
	close(results)

	var all []string
	for r := range results {
		all = append(all, r)
	}
	require.Equal(t, []string{expected}, all)
}
