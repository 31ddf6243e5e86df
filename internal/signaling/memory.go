package signaling

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/errs"
	"github.com/abdulmanan69/p2pchat/internal/loop"
)

// Compile-time interface check.
var _ Transport = (*MemoryTransport)(nil)

// MemoryTransport is an in-process relay for tests. Several sessions sharing
// one MemoryTransport behave as if they were connected to the same relay:
// records are fanned out to every subscriber of the room, in publish order,
// on a per-subscriber goroutine.
type MemoryTransport struct {
	mu      sync.Mutex
	rooms   map[string]map[*memorySubscription]struct{}
	records []Record
	seq     int

	publishErr error
	hold       bool
	onPublish  func(Record) bool
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{rooms: make(map[string]map[*memorySubscription]struct{})}
}

// FailPublishes makes every later Publish fail with err. nil restores normal
// behavior.
func (m *MemoryTransport) FailPublishes(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// HoldSubscriptions makes later subscriptions stay in the connecting state
// forever.
func (m *MemoryTransport) HoldSubscriptions(hold bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = hold
}

// InterceptPublish installs fn to inspect each record before fan-out.
// Records for which fn returns false are stored but not delivered.
func (m *MemoryTransport) InterceptPublish(fn func(Record) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPublish = fn
}

// Records returns a copy of every record published so far.
func (m *MemoryTransport) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// Deliver injects rec as if another client had published it.
func (m *MemoryTransport) Deliver(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fanOutLocked(m.stampLocked(rec))
}

func (m *MemoryTransport) Publish(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return errs.Transport("publish", err)
	}
	if err := rec.Validate(); err != nil {
		return errs.Transport("publish", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishErr != nil {
		return errs.Transport("publish", m.publishErr)
	}

	rec = m.stampLocked(rec)
	if m.onPublish != nil && !m.onPublish(rec) {
		return nil
	}
	m.fanOutLocked(rec)
	return nil
}

func (m *MemoryTransport) stampLocked(rec Record) Record {
	m.seq++
	rec.ID = strconv.Itoa(m.seq)
	rec.CreatedAt = time.Now().UTC()
	m.records = append(m.records, rec)
	return rec
}

func (m *MemoryTransport) fanOutLocked(rec Record) {
	for sub := range m.rooms[rec.RoomID] {
		sub.deliver(rec)
	}
}

func (m *MemoryTransport) Subscribe(ctx context.Context, roomID string, h Handler) (Subscription, error) {
	if roomID == "" {
		return nil, errs.Transport("subscribe", errors.New("room id is required"))
	}

	sub := &memorySubscription{
		owner:   m,
		roomID:  roomID,
		handler: h,
		queue:   loop.New(),
	}
	go sub.queue.Run(context.Background())

	m.mu.Lock()
	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[*memorySubscription]struct{})
	}
	m.rooms[roomID][sub] = struct{}{}
	hold := m.hold
	m.mu.Unlock()

	sub.status(StatusConnecting, nil)
	if !hold {
		sub.status(StatusSubscribed, nil)
	}
	return sub, nil
}

type memorySubscription struct {
	owner   *MemoryTransport
	roomID  string
	handler Handler
	queue   *loop.Loop
	closed  atomic.Bool
}

func (s *memorySubscription) deliver(rec Record) {
	s.queue.Post(func() {
		if !s.closed.Load() && s.handler.OnRecord != nil {
			s.handler.OnRecord(rec)
		}
	})
}

func (s *memorySubscription) status(st Status, err error) {
	s.queue.Post(func() {
		if s.handler.OnStatus != nil {
			s.handler.OnStatus(st, err)
		}
	})
}

func (s *memorySubscription) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.owner.mu.Lock()
	delete(s.owner.rooms[s.roomID], s)
	s.owner.mu.Unlock()

	s.queue.Post(func() {
		if s.handler.OnStatus != nil {
			s.handler.OnStatus(StatusClosed, nil)
		}
		s.queue.Stop()
	})
	return nil
}
