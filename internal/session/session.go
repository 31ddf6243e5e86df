// Package session ties the chat core together: one identity, one room, one
// execution loop, and the registry, negotiator and channel adapter that run
// on it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/chat"
	"github.com/abdulmanan69/p2pchat/internal/config"
	"github.com/abdulmanan69/p2pchat/internal/errs"
	"github.com/abdulmanan69/p2pchat/internal/iceauth"
	"github.com/abdulmanan69/p2pchat/internal/identity"
	"github.com/abdulmanan69/p2pchat/internal/loop"
	"github.com/abdulmanan69/p2pchat/internal/negotiator"
	"github.com/abdulmanan69/p2pchat/internal/peer"
	"github.com/abdulmanan69/p2pchat/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

const eventBuffer = 256

var errReset = errors.New("session was reset while joining")

// Options configure a Session. Only Config is required; the rest default to
// the production implementations built from it.
type Options struct {
	Config    *config.Config
	Identity  identity.Identity
	Transport signaling.Transport
	ICE       negotiator.ICESource
	API       *pion.API
}

// Session is the application context. Every mutation of its state happens
// on its loop; the exported methods hand work to the loop and wait.
type Session struct {
	cfg       *config.Config
	self      identity.Identity
	transport signaling.Transport

	ctx    context.Context
	cancel context.CancelFunc

	loop     *loop.Loop
	registry *peer.Registry
	adapter  *chat.Adapter
	neg      *negotiator.Negotiator

	events    chan Event
	closeOnce sync.Once

	// loop-owned
	room   string
	sub    signaling.Subscription
	status Status

	// gen invalidates subscription callbacks from before a reset. Bumped on
	// the loop, read by transport goroutines.
	gen atomic.Uint64
}

// New builds a session and starts its loop. Close releases it.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, errors.New("session: config is required")
	}
	cfg := opts.Config

	self := opts.Identity
	if self.PeerID == "" {
		self = identity.New()
	}

	transport := opts.Transport
	if transport == nil {
		ws, err := signaling.NewWSTransport(cfg.RelayURL)
		if err != nil {
			return nil, err
		}
		transport = ws
	}

	ice := opts.ICE
	if ice == nil {
		ice = iceauth.NewFetcher(cfg.CredentialURL, cfg.STUNServers, cfg.CredentialTimeout)
	}

	api := opts.API
	if api == nil {
		api = negotiator.NewAPI(nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		cfg:       cfg,
		self:      self,
		transport: transport,
		ctx:       ctx,
		cancel:    cancel,
		loop:      loop.New(),
		registry:  peer.NewRegistry(),
		events:    make(chan Event, eventBuffer),
		status:    StatusIdle,
	}

	s.adapter = chat.NewAdapter(s.loop, s.registry, cfg.SendRetryDelay, chat.Hooks{
		OnOpen: func(id string) {
			s.emit(Event{Kind: EventPeerJoined, PeerID: id})
		},
		OnMessage: func(id string, msg chat.Message) {
			s.emit(Event{Kind: EventMessage, PeerID: id, Message: msg})
		},
		OnClose: func(id string) {
			s.emit(Event{Kind: EventPeerLeft, PeerID: id})
		},
	})

	s.neg = negotiator.New(ctx, negotiator.Config{
		Self:               self,
		API:                api,
		ICE:                ice,
		Publisher:          transport,
		Loop:               s.loop,
		Registry:           s.registry,
		Adapter:            s.adapter,
		ForceRelay:         cfg.ForceRelay,
		NegotiationTimeout: cfg.NegotiationTimeout,
		OnPeerFailed: func(id string, err error) {
			s.emit(Event{Kind: EventPeerFailed, PeerID: id, Err: err})
		},
	})

	go s.loop.Run(ctx)

	slog.Debug("session created", "peer_id", self.PeerID, "name", self.DisplayName)
	return s, nil
}

// Self returns the local identity.
func (s *Session) Self() identity.Identity {
	return s.self
}

// Events delivers status changes, messages and peer lifecycle notifications.
// It is closed by Close.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Join subscribes to roomID, waits for the subscription to become active and
// announces this peer. Failing to subscribe within the subscribe timeout
// aborts the join with a transport error.
func (s *Session) Join(ctx context.Context, roomID string) error {
	if err := config.ValidateRoomID(roomID); err != nil {
		return err
	}

	var (
		gen    uint64
		joined bool
	)
	if err := s.loop.Do(ctx, func() {
		if s.room != "" {
			joined = true
			return
		}
		gen = s.gen.Load()
		s.room = roomID
		s.neg.SetRoom(roomID)
		s.setStatus(StatusConnecting, nil)
	}); err != nil {
		return err
	}
	if joined {
		return errs.ErrAlreadyJoined
	}

	slog.Info("joining room", "room", roomID, "peer_id", s.self.PeerID)

	ready := newJoinWaiter()
	sub, err := s.transport.Subscribe(s.ctx, roomID, signaling.Handler{
		OnRecord: func(rec signaling.Record) {
			s.loop.Post(func() {
				if s.gen.Load() == gen {
					s.neg.HandleRecord(rec)
				}
			})
		},
		OnStatus: func(st signaling.Status, err error) {
			s.handleSubscriptionStatus(gen, st, err, ready)
		},
	})
	if err != nil {
		s.abortJoin(gen, StatusFailed, err)
		return errs.Transport("join", err)
	}

	timer := time.NewTimer(s.cfg.SubscribeTimeout)
	defer timer.Stop()

	select {
	case err = <-ready.ch:
	case <-timer.C:
		err = errs.ErrSubscribeTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		sub.Unsubscribe()
		status := StatusFailed
		if errors.Is(err, errs.ErrSubscribeTimeout) {
			status = StatusTimeout
		}
		s.abortJoin(gen, status, err)
		if errors.Is(err, errs.ErrTransport) {
			return err
		}
		return errs.Transport("join", err)
	}

	var (
		stale     bool
		announced <-chan error
	)
	if err := s.loop.Do(ctx, func() {
		if s.gen.Load() != gen {
			stale = true
			return
		}
		announced = s.neg.AnnouncePresence()
	}); err != nil {
		sub.Unsubscribe()
		return err
	}
	if stale {
		sub.Unsubscribe()
		return errs.Transport("join", errReset)
	}

	// Join completes only once the relay holds our new-peer record. A peer
	// subscribing after that never sees it and waits for our offer.
	announceTimer := time.NewTimer(s.cfg.SubscribeTimeout)
	defer announceTimer.Stop()

	select {
	case err = <-announced:
	case <-announceTimer.C:
		err = errors.New("announcing presence timed out")
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		sub.Unsubscribe()
		s.abortJoin(gen, StatusFailed, err)
		if errors.Is(err, errs.ErrTransport) {
			return err
		}
		return errs.Transport("announce", err)
	}

	if err := s.loop.Do(ctx, func() {
		if s.gen.Load() != gen {
			stale = true
			return
		}
		s.sub = sub
		s.setStatus(StatusConnected, nil)
	}); err != nil {
		sub.Unsubscribe()
		return err
	}
	if stale {
		sub.Unsubscribe()
		return errs.Transport("join", errReset)
	}

	slog.Info("joined room", "room", roomID)
	return nil
}

// handleSubscriptionStatus runs on the transport's goroutine.
func (s *Session) handleSubscriptionStatus(gen uint64, st signaling.Status, err error, ready *joinWaiter) {
	slog.Debug("subscription status", "status", st, "error", err)

	switch st {
	case signaling.StatusSubscribed:
		ready.settle(nil)

	case signaling.StatusError:
		if ready.settle(err) {
			return
		}
		// The stream dropped after the join completed.
		s.loop.Post(func() {
			if s.gen.Load() == gen && s.status == StatusConnected {
				slog.Warn("signaling stream lost", "error", err)
				s.setStatus(StatusFailed, err)
			}
		})
	}
}

// joinWaiter carries the first subscription outcome to Join.
type joinWaiter struct {
	once sync.Once
	ch   chan error
}

func newJoinWaiter() *joinWaiter {
	return &joinWaiter{ch: make(chan error, 1)}
}

// settle reports whether this call delivered the outcome.
func (w *joinWaiter) settle(err error) bool {
	settled := false
	w.once.Do(func() {
		w.ch <- err
		settled = true
	})
	return settled
}

func (s *Session) abortJoin(gen uint64, status Status, err error) {
	s.loop.Do(context.Background(), func() {
		if s.gen.Load() != gen {
			return
		}
		s.gen.Add(1)
		s.room = ""
		s.neg.SetRoom("")
		s.setStatus(status, err)
	})
	slog.Warn("join failed", "status", status, "error", err)
}

// Send trims text and broadcasts it to every peer. The message is echoed to
// Events as an own message even when no peer is connected yet. Blank input
// is ignored.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	msg := chat.Message{
		Text:      text,
		Sender:    s.self.DisplayName,
		Timestamp: time.Now(),
	}

	var sendErr error
	if err := s.loop.Do(ctx, func() {
		if s.room == "" {
			sendErr = errs.ErrNotJoined
			return
		}
		s.emit(Event{Kind: EventMessage, PeerID: s.self.PeerID, Message: msg, Own: true})

		sent, err := s.adapter.Broadcast(msg)
		slog.Debug("broadcast", "delivered", sent, "peers", s.registry.Len())
		sendErr = err
	}); err != nil {
		return err
	}
	return sendErr
}

// Reset leaves the room: every connection is closed, the registry is
// cleared and the subscription is torn down. Callbacks still in flight from
// before the reset are discarded.
func (s *Session) Reset(ctx context.Context) error {
	var sub signaling.Subscription
	if err := s.loop.Do(ctx, func() {
		s.gen.Add(1)
		s.neg.Reset()
		sub, s.sub = s.sub, nil
		s.room = ""
		s.setStatus(StatusIdle, nil)
	}); err != nil {
		return err
	}

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			return errs.Transport("unsubscribe", err)
		}
	}
	return nil
}

// PeerInfo is a snapshot of one registry entry.
type PeerInfo struct {
	ID        string
	Role      peer.Role
	State     peer.State
	CreatedAt time.Time
}

// Peers lists the current peers in the order they were first seen.
func (s *Session) Peers(ctx context.Context) ([]PeerInfo, error) {
	var out []PeerInfo
	err := s.loop.Do(ctx, func() {
		for _, e := range s.registry.All() {
			out = append(out, PeerInfo{ID: e.ID, Role: e.Role, State: e.State, CreatedAt: e.CreatedAt})
		}
	})
	return out, err
}

// Room returns the joined room id, or "" when idle.
func (s *Session) Room(ctx context.Context) (string, error) {
	var room string
	err := s.loop.Do(ctx, func() { room = s.room })
	return room, err
}

// Close resets the session, stops its loop and closes the event channel.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := s.Reset(ctx); rerr != nil && !errors.Is(rerr, loop.ErrStopped) {
			err = fmt.Errorf("close session: %w", rerr)
		}
		s.cancel()
		<-s.loop.Done()
		close(s.events)
	})
	return err
}

func (s *Session) setStatus(st Status, err error) {
	if s.status == st {
		return
	}
	s.status = st
	s.emit(Event{Kind: EventStatus, Status: st, Err: err})
}

// emit must run on the loop. A full buffer drops the event rather than
// stalling the loop.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		slog.Warn("event buffer full, dropping event", "kind", ev.Kind)
	}
}
