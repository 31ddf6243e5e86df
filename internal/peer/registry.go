// Package peer tracks one entry per remote peer. A Registry is not safe for
// concurrent use; callers confine it to a single goroutine.
package peer

import (
	"fmt"
	"log/slog"
	"time"

	pion "github.com/pion/webrtc/v4"
)

// Channel is the part of a data channel the chat layer depends on.
// *webrtc.DataChannel satisfies it.
type Channel interface {
	Label() string
	ReadyState() pion.DataChannelState
	SendText(string) error
	Close() error
}

type Entry struct {
	ID        string
	Role      Role
	State     State
	Conn      *pion.PeerConnection
	Channel   Channel
	CreatedAt time.Time

	// Remote candidates received before the remote description was set.
	Pending []pion.ICECandidateInit

	// Timer fails the entry if it never opens. Stopped on removal.
	Timer *time.Timer
}

type Registry struct {
	entries map[string]*Entry
	order   []string
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

func (r *Registry) Get(id string) *Entry {
	return r.entries[id]
}

func (r *Registry) Has(id string) bool {
	_, ok := r.entries[id]
	return ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// All returns entries in insertion order.
func (r *Registry) All() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Reserve creates a connection-less entry in StateNone. If an entry already
// exists it is returned unchanged with created=false.
func (r *Registry) Reserve(id string, role Role) (entry *Entry, created bool) {
	if e, ok := r.entries[id]; ok {
		return e, false
	}
	e := &Entry{ID: id, Role: role, State: StateNone, CreatedAt: r.now()}
	r.entries[id] = e
	r.order = append(r.order, id)
	return e, true
}

// UpsertConnection sets conn on the entry for id, creating a responder entry
// if needed. An existing connection is never replaced; in that case the
// entry is returned with set=false.
func (r *Registry) UpsertConnection(id string, conn *pion.PeerConnection) (entry *Entry, set bool) {
	e, _ := r.Reserve(id, RoleResponder)
	if e.Conn != nil {
		return e, false
	}
	e.Conn = conn
	return e, true
}

func (r *Registry) AttachChannel(id string, ch Channel) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("attach channel: unknown peer %s", id)
	}
	e.Channel = ch
	return nil
}

// Transition moves the entry for id to state to if the edge is allowed for
// its role.
func (r *Registry) Transition(id string, to State) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("transition: unknown peer %s", id)
	}
	if !canTransition(e.Role, e.State, to) {
		return transitionError(id, e.Role, e.State, to)
	}
	slog.Debug("peer state", "peer", id, "role", e.Role, "from", e.State, "to", to)
	e.State = to
	return nil
}

// Remove deletes the entry for id and releases its connection. It returns
// the removed entry, or nil.
func (r *Registry) Remove(id string) *Entry {
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	release(e)
	return e
}

// RemoveEntry removes e only if it is still the registered entry for its id.
func (r *Registry) RemoveEntry(e *Entry) bool {
	if e == nil || r.entries[e.ID] != e {
		return false
	}
	r.Remove(e.ID)
	return true
}

// Clear removes every entry and closes every connection.
func (r *Registry) Clear() []*Entry {
	removed := r.All()
	r.entries = make(map[string]*Entry)
	r.order = nil
	for _, e := range removed {
		release(e)
	}
	return removed
}

// release stops the entry timer and closes the connection off the caller's
// goroutine. PeerConnection.Close waits for in-flight callbacks, which post
// back to the caller.
func release(e *Entry) {
	if e.Timer != nil {
		e.Timer.Stop()
	}
	if !e.State.Terminal() {
		e.State = StateClosed
	}
	if conn := e.Conn; conn != nil {
		go func() {
			if err := conn.Close(); err != nil {
				slog.Debug("close peer connection", "peer", e.ID, "error", err)
			}
		}()
	} else if ch := e.Channel; ch != nil {
		go ch.Close()
	}
}
