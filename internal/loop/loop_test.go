package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTasksRunInPostOrder(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	var n int
	if err := l.Do(ctx, func() { n = len(got) }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if n != 100 {
		t.Fatalf("expected 100 tasks to have run, got %d", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected task %d at position %d, got %d", i, i, v)
		}
	}
}

func TestPostFromTaskDoesNotDeadlock(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	done := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("nested post never ran")
	}
}

func TestConcurrentPostersAreSerialized(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var got int
	if err := l.Do(ctx, func() { got = counter }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != 1000 {
		t.Fatalf("expected 1000, got %d", got)
	}
}

func TestPostAfterStop(t *testing.T) {
	t.Parallel()

	l := New()
	l.Stop()

	if l.Post(func() {}) {
		t.Fatalf("expected Post to report false after Stop")
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	l := New()

	returned := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(returned)
	}()
	cancel()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	select {
	case <-l.Done():
	default:
		t.Fatalf("expected loop to be stopped after cancel")
	}
}
