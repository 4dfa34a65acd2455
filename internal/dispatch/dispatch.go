// Package dispatch funnels work onto a single owner goroutine.
//
// Every mutation of switcher state runs through a Dispatcher, so components
// never need their own locks.
package dispatch

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
)

// Dispatcher schedules fn to run on the owner goroutine.
type Dispatcher interface {
	Post(fn func())
}

// Loop is a channel-backed dispatcher whose owner is the goroutine calling Run.
type Loop struct {
	work    chan func()
	done    chan struct{}
	stopped sync.Once
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		work: make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. Work posted after the loop stopped is dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		log.Printf("[DISPATCH] loop stopped, dropping work")
	case l.work <- fn:
	}
}

// Run executes posted work until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopped.Do(func() { close(l.done) })

	for {
		select {
		case fn := <-l.work:
			runSafely(fn)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func runSafely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[DISPATCH] panic in posted work: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// Queue collects posted work until Drain is called. Tests use it to decide
// exactly when asynchronous results reach the owner.
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

func (q *Queue) Post(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, fn)
}

// Drain runs queued work, including work queued while draining, and returns
// how many functions ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

// Len reports how much work is waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
