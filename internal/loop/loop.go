// Package loop runs all controller work on one goroutine. Timers and other
// goroutines hand work to the loop through its inbox.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"worldclear/internal/logging"
)

// ErrStopped is returned when work is handed to a loop that has exited.
var ErrStopped = errors.New("loop: stopped")

// ErrTaskPanicked is returned by Call when its function panicked.
var ErrTaskPanicked = errors.New("loop: task panicked")

// TaskID identifies a scheduled task. The zero value is never issued.
type TaskID uint64

// Task is a unit of work executed on the loop goroutine.
type Task func(ctx context.Context)

// Loop serialises tasks onto the goroutine that calls Run.
type Loop struct {
	inbox chan Task
	done  chan struct{}

	mu      sync.Mutex
	timers  map[TaskID]*time.Timer
	next    TaskID
	stopped bool
}

// New returns a Loop whose inbox buffers up to size tasks.
func New(size int) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{
		inbox:  make(chan Task, size),
		done:   make(chan struct{}),
		timers: make(map[TaskID]*time.Timer),
	}
}

// Run executes tasks until ctx is cancelled. On return every scheduled task
// is cancelled and further Posts fail with ErrStopped.
func (l *Loop) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("starting controller loop")
	defer l.shutdown()
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping controller loop")
			return
		case t := <-l.inbox:
			l.exec(ctx, t)
		}
	}
}

func (l *Loop) exec(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("loop task panicked", "panic", r)
		}
	}()
	t(ctx)
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
	close(l.done)
}

// Post queues t for execution. It blocks while the inbox is full.
func (l *Loop) Post(t Task) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case <-l.done:
		return ErrStopped
	case l.inbox <- t:
		return nil
	}
}

// After runs t once on the loop after d. It returns 0 if the loop stopped.
func (l *Loop) After(d time.Duration, t Task) TaskID {
	return l.schedule(d, t, false)
}

// Every runs t on the loop every d until cancelled.
func (l *Loop) Every(d time.Duration, t Task) TaskID {
	return l.schedule(d, t, true)
}

func (l *Loop) schedule(d time.Duration, t Task, repeat bool) TaskID {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return 0
	}
	l.next++
	id := l.next
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		l.mu.Lock()
		_, live := l.timers[id]
		if live && repeat {
			timer.Reset(d)
		}
		l.mu.Unlock()
		if !live {
			return
		}
		_ = l.Post(func(ctx context.Context) {
			// cancelled between firing and running
			if !l.claim(id, repeat) {
				return
			}
			t(ctx)
		})
	})
	l.timers[id] = timer
	return id
}

// claim reports whether id is still scheduled, removing one-shot tasks.
func (l *Loop) claim(id TaskID, repeat bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.timers[id]; !ok {
		return false
	}
	if !repeat {
		delete(l.timers, id)
	}
	return true
}

// Cancel stops a scheduled task. Unknown IDs are ignored.
func (l *Loop) Cancel(id TaskID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[id]; ok {
		t.Stop()
		delete(l.timers, id)
	}
}

// Pending returns the number of scheduled tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Call runs fn on the loop and waits for its result. It must not be called
// from a task already running on the loop. A panic in fn is logged and
// reported as ErrTaskPanicked.
func Call[T any](ctx context.Context, l *Loop, fn func(context.Context) T) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T
	res := make(chan result, 1)
	task := func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				logging.FromContext(ctx).Error("loop call panicked", "panic", r)
				res <- result{err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
			}
		}()
		res <- result{v: fn(ctx)}
	}
	if err := l.Post(task); err != nil {
		return zero, err
	}
	select {
	case r := <-res:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-l.done:
		return zero, ErrStopped
	}
}
