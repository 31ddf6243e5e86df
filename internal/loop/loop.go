// Package loop provides a single-goroutine task executor. Everything posted
// to a Loop runs sequentially on the goroutine that called Run, so state that
// is only touched from tasks needs no locking.
package loop

import (
	"context"
	"errors"
	"sync"
)

var ErrStopped = errors.New("loop stopped")

type Loop struct {
	mu    sync.Mutex
	queue []func()

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run executes posted tasks in FIFO order until ctx is cancelled or Stop is
// called. Tasks still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			batch := l.queue
			l.queue = nil
			l.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				select {
				case <-l.done:
					return
				default:
				}
				fn()
			}
		}
	}
}

// Post queues fn without blocking. It reports false once the loop has stopped.
// Safe to call from any goroutine, including from inside a task.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish. Must not be called from
// inside a task.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Loop) Done() <-chan struct{} {
	return l.done
}
