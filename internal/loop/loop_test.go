package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestCallReturnsValue(t *testing.T) {
	l := startLoop(t)
	v, err := Call(context.Background(), l, func(context.Context) int { return 42 })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestTasksRunInOrder(t *testing.T) {
	l := startLoop(t)
	var got []int
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Post(func(context.Context) { got = append(got, i) }))
	}
	n, err := Call(context.Background(), l, func(context.Context) int { return len(got) })
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestAfterRunsOnce(t *testing.T) {
	l := startLoop(t)
	var runs atomic.Int32
	l.After(10*time.Millisecond, func(context.Context) { runs.Add(1) })
	require.Eventually(t, func() bool { return runs.Load() == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return l.Pending() == 0 }, waitFor, tick)
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load(), "one-shot task ran more than once")
}

func TestEveryRepeatsUntilCancelled(t *testing.T) {
	l := startLoop(t)
	var runs atomic.Int32
	id := l.Every(5*time.Millisecond, func(context.Context) { runs.Add(1) })
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, waitFor, tick)
	l.Cancel(id)
	// drain anything already queued
	_, err := Call(context.Background(), l, func(context.Context) struct{} { return struct{}{} })
	require.NoError(t, err)
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "task ran after cancel")
	assert.Zero(t, l.Pending())
}

func TestCancelBeforeFire(t *testing.T) {
	l := startLoop(t)
	var runs atomic.Int32
	id := l.After(20*time.Millisecond, func(context.Context) { runs.Add(1) })
	l.Cancel(id)
	l.Cancel(id)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, runs.Load(), "cancelled task ran")
}

func TestStopCancelsEverything(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	l.Every(time.Hour, func(context.Context) {})
	l.After(time.Hour, func(context.Context) {})
	cancel()
	<-l.Done()

	assert.Zero(t, l.Pending(), "timers left after stop")
	assert.Zero(t, l.After(time.Millisecond, func(context.Context) {}), "schedule after stop")
	assert.ErrorIs(t, l.Post(func(context.Context) {}), ErrStopped)
	_, err := Call(context.Background(), l, func(context.Context) int { return 1 })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPanicDoesNotKillLoop(t *testing.T) {
	l := startLoop(t)
	_ = l.Post(func(context.Context) { panic("boom") })
	v, err := Call(context.Background(), l, func(context.Context) string { return "alive" })
	require.NoError(t, err)
	assert.Equal(t, "alive", v)
}

func TestCallReturnsErrorWhenTaskPanics(t *testing.T) {
	l := startLoop(t)
	done := make(chan error, 1)
	go func() {
		_, err := Call(context.Background(), l, func(context.Context) int { panic("boom") })
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTaskPanicked)
		assert.ErrorContains(t, err, "boom")
	case <-time.After(waitFor):
		t.Fatal("Call still blocked after its task panicked")
	}

	v, err := Call(context.Background(), l, func(context.Context) int { return 7 })
	require.NoError(t, err)
	assert.Equal(t, 7, v, "loop unusable after a panicking call")
}
