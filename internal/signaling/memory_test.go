package signaling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/errs"
)

type recorder struct {
	mu       sync.Mutex
	records  []Record
	statuses []Status
	notify   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 128)}
}

func (r *recorder) handler() Handler {
	return Handler{
		OnRecord: func(rec Record) {
			r.mu.Lock()
			r.records = append(r.records, rec)
			r.mu.Unlock()
			r.notify <- struct{}{}
		},
		OnStatus: func(st Status, _ error) {
			r.mu.Lock()
			r.statuses = append(r.statuses, st)
			r.mu.Unlock()
			r.notify <- struct{}{}
		},
	}
}

func (r *recorder) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		ok := cond()
		r.mu.Unlock()
		if ok {
			return
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("condition not met in time")
		}
	}
}

func TestMemoryTransportFansOutToWholeRoomIncludingSender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryTransport()

	a, b, other := newRecorder(), newRecorder(), newRecorder()
	if _, err := m.Subscribe(ctx, "lobby", a.handler()); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if _, err := m.Subscribe(ctx, "lobby", b.handler()); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}
	if _, err := m.Subscribe(ctx, "elsewhere", other.handler()); err != nil {
		t.Fatalf("subscribe other: %v", err)
	}

	for _, target := range []string{"", "b", "b"} {
		rec := Record{RoomID: "lobby", Sender: "a", Type: TypeNewPeer, Target: target}
		if target != "" {
			rec.Type = TypeOffer
			rec.SDP = "v=0"
		}
		if err := m.Publish(ctx, rec); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	for _, r := range []*recorder{a, b} {
		r.waitFor(t, func() bool { return len(r.records) == 3 })
		if r.records[0].Type != TypeNewPeer || r.records[0].ID != "1" || r.records[2].ID != "3" {
			t.Fatalf("expected records in publish order, got %+v", r.records)
		}
		if r.statuses[0] != StatusConnecting || r.statuses[1] != StatusSubscribed {
			t.Fatalf("expected connecting then subscribed, got %v", r.statuses)
		}
	}

	other.mu.Lock()
	defer other.mu.Unlock()
	if len(other.records) != 0 {
		t.Fatalf("expected no records for another room, got %d", len(other.records))
	}
}

func TestMemoryTransportUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryTransport()
	r := newRecorder()

	sub, err := m.Subscribe(ctx, "lobby", r.handler())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second unsubscribe: %v", err)
	}

	r.waitFor(t, func() bool {
		return len(r.statuses) > 0 && r.statuses[len(r.statuses)-1] == StatusClosed
	})

	if err := m.Publish(ctx, Record{RoomID: "lobby", Sender: "x", Type: TypeNewPeer}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", len(r.records))
	}
}

func TestMemoryTransportFaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemoryTransport()

	m.FailPublishes(errors.New("write rejected"))
	err := m.Publish(ctx, Record{RoomID: "lobby", Sender: "a", Type: TypeNewPeer})
	if !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	m.FailPublishes(nil)

	if err := m.Publish(ctx, Record{RoomID: "lobby", Type: TypeNewPeer}); !errors.Is(err, errs.ErrTransport) {
		t.Fatalf("expected invalid record to be rejected, got %v", err)
	}

	m.HoldSubscriptions(true)
	r := newRecorder()
	if _, err := m.Subscribe(ctx, "lobby", r.handler()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	r.waitFor(t, func() bool { return len(r.statuses) == 1 })
	time.Sleep(50 * time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) != 1 || r.statuses[0] != StatusConnecting {
		t.Fatalf("expected subscription to stay connecting, got %v", r.statuses)
	}
}
