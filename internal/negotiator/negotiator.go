// Package negotiator drives WebRTC connection setup from signaling records.
//
// Every exported method and every internal continuation runs on the session
// loop. Blocking work (ICE credential fetches, relay publishes) happens on
// other goroutines and re-enters the loop through Post; each re-entry checks
// that the entry it started with is still registered and that no reset has
// happened in between.
package negotiator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/chat"
	"github.com/abdulmanan69/p2pchat/internal/errs"
	"github.com/abdulmanan69/p2pchat/internal/identity"
	"github.com/abdulmanan69/p2pchat/internal/loop"
	"github.com/abdulmanan69/p2pchat/internal/peer"
	"github.com/abdulmanan69/p2pchat/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// ICESource supplies ICE servers for a new connection. It must not fail;
// *iceauth.Fetcher falls back to STUN on its own.
type ICESource interface {
	ICEServers(ctx context.Context) []pion.ICEServer
}

type Publisher interface {
	Publish(ctx context.Context, rec signaling.Record) error
}

type Config struct {
	Self      identity.Identity
	API       *pion.API
	ICE       ICESource
	Publisher Publisher
	Loop      *loop.Loop
	Registry  *peer.Registry
	Adapter   *chat.Adapter

	ForceRelay bool

	// NegotiationTimeout fails entries that are not open in time. Zero
	// disables it.
	NegotiationTimeout time.Duration

	// OnPeerFailed is called on the loop when negotiation with a peer is
	// abandoned.
	OnPeerFailed func(peerID string, err error)
}

type Negotiator struct {
	cfg  Config
	ctx  context.Context
	room string

	// gen is bumped by Reset. Continuations and queued publishes carry the
	// generation they were started in and drop themselves when it changed.
	// Written on the loop, read by the outbox goroutine.
	gen    atomic.Uint64
	outbox *loop.Loop
}

// New returns a negotiator whose background work is bound to ctx.
func New(ctx context.Context, cfg Config) *Negotiator {
	if cfg.API == nil {
		cfg.API = NewAPI(nil)
	}
	n := &Negotiator{
		cfg:    cfg,
		ctx:    ctx,
		outbox: loop.New(),
	}
	go n.outbox.Run(ctx)
	return n
}

// SetRoom sets the room outbound records are addressed to.
func (n *Negotiator) SetRoom(roomID string) {
	n.room = roomID
}

// Generation returns the current reset generation.
func (n *Negotiator) Generation() uint64 {
	return n.gen.Load()
}

// Reset abandons every negotiation and closes every connection. Work that is
// still in flight from before the reset becomes a no-op.
func (n *Negotiator) Reset() {
	n.gen.Add(1)
	n.room = ""
	for _, e := range n.cfg.Registry.Clear() {
		slog.Debug("peer dropped on reset", "peer", e.ID, "state", e.State)
	}
}

// ErrDropped is delivered for a queued record that a reset discarded
// before it reached the relay.
var ErrDropped = errors.New("record dropped by reset")

// AnnouncePresence broadcasts a new-peer record. Peers already in the room
// respond with offers; the newcomer never offers first. The returned channel
// yields the publish outcome once the relay has accepted or rejected it.
func (n *Negotiator) AnnouncePresence() <-chan error {
	return n.publish(signaling.Record{Type: signaling.TypeNewPeer}, "")
}

// HandleRecord reacts to one inbound signaling record.
func (n *Negotiator) HandleRecord(rec signaling.Record) {
	if !rec.IsFor(n.cfg.Self.PeerID) {
		return
	}

	switch rec.Type {
	case signaling.TypeNewPeer:
		n.CreateOfferForPeer(rec.Sender)
	case signaling.TypeOffer:
		n.handleOffer(rec)
	case signaling.TypeAnswer:
		n.handleAnswer(rec)
	case signaling.TypeICECandidate:
		n.handleICECandidate(rec)
	default:
		slog.Debug("ignoring record", "type", rec.Type, "from", rec.Sender)
	}
}

// CreateOfferForPeer starts the initiator side towards target unless an
// entry for target already exists.
func (n *Negotiator) CreateOfferForPeer(target string) {
	if n.cfg.Registry.Has(target) {
		slog.Debug("peer already known, not offering", "peer", target)
		return
	}

	entry, _ := n.cfg.Registry.Reserve(target, peer.RoleInitiator)
	if err := n.cfg.Registry.Transition(target, peer.StateOffering); err != nil {
		slog.Warn("reserve offer", "peer", target, "error", err)
		return
	}
	n.armTimeout(entry)

	slog.Info("offering to peer", "peer", target)
	n.withICEServers(entry, n.startOffer)
}

func (n *Negotiator) startOffer(entry *peer.Entry, servers []pion.ICEServer) {
	id := entry.ID

	pc, err := n.connect(entry, servers)
	if err != nil {
		n.fail(entry, errs.Negotiation("create peer connection", id, err))
		return
	}

	dc, err := createChatChannel(pc)
	if err != nil {
		n.fail(entry, errs.Negotiation("create data channel", id, err))
		return
	}
	if err := n.cfg.Registry.AttachChannel(id, dc); err != nil {
		n.fail(entry, errs.Negotiation("create data channel", id, err))
		return
	}
	n.cfg.Adapter.Wrap(dc, id)

	sdp, err := createOffer(pc)
	if err != nil {
		n.fail(entry, errs.Negotiation("offer", id, err))
		return
	}
	if err := n.cfg.Registry.Transition(id, peer.StateLocalOfferSet); err != nil {
		n.fail(entry, errs.Negotiation("offer", id, err))
		return
	}

	n.publish(signaling.Record{Type: signaling.TypeOffer, SDP: sdp}, id)
}

func (n *Negotiator) handleOffer(rec signaling.Record) {
	from := rec.Sender

	if entry := n.cfg.Registry.Get(from); entry != nil {
		switch {
		case entry.State == peer.StateOpen:
			slog.Info("ignoring offer for an open connection, renegotiation is not supported", "peer", from)
			return

		case entry.Role == peer.RoleInitiator && entry.State.Negotiating():
			// Glare. The smaller peer id is the canonical offerer.
			if from > n.cfg.Self.PeerID {
				slog.Debug("glare, keeping our offer", "peer", from)
				return
			}
			slog.Info("glare, yielding to remote offer", "peer", from)
			n.cfg.Registry.RemoveEntry(entry)

		default:
			slog.Debug("ignoring duplicate offer", "peer", from, "state", entry.State)
			return
		}
	}

	entry, _ := n.cfg.Registry.Reserve(from, peer.RoleResponder)
	n.armTimeout(entry)

	slog.Info("answering peer", "peer", from)
	sdp := rec.SDP
	n.withICEServers(entry, func(entry *peer.Entry, servers []pion.ICEServer) {
		n.startAnswer(entry, servers, sdp)
	})
}

func (n *Negotiator) startAnswer(entry *peer.Entry, servers []pion.ICEServer, offerSDP string) {
	id := entry.ID

	pc, err := n.connect(entry, servers)
	if err != nil {
		n.fail(entry, errs.Negotiation("create peer connection", id, err))
		return
	}

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		// Attach before the adapter can post the open event.
		n.cfg.Loop.Post(func() { n.attachRemoteChannel(entry, dc) })
		n.cfg.Adapter.Wrap(dc, id)
	})

	offer := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(offer); err != nil {
		n.fail(entry, errs.Negotiation("set remote offer", id, err))
		return
	}
	if err := n.cfg.Registry.Transition(id, peer.StateRemoteOfferSet); err != nil {
		n.fail(entry, errs.Negotiation("set remote offer", id, err))
		return
	}
	n.flushCandidates(entry)

	if err := n.cfg.Registry.Transition(id, peer.StateAnswering); err != nil {
		n.fail(entry, errs.Negotiation("answer", id, err))
		return
	}
	sdp, err := createAnswer(pc)
	if err != nil {
		n.fail(entry, errs.Negotiation("answer", id, err))
		return
	}
	if err := n.cfg.Registry.Transition(id, peer.StateLocalAnswerSet); err != nil {
		n.fail(entry, errs.Negotiation("answer", id, err))
		return
	}

	n.publish(signaling.Record{Type: signaling.TypeAnswer, SDP: sdp}, id)
}

func (n *Negotiator) attachRemoteChannel(entry *peer.Entry, dc *pion.DataChannel) {
	if !n.current(entry) {
		dc.Close()
		return
	}
	if dc.Label() != chat.ChannelLabel {
		slog.Warn("closing unexpected data channel", "peer", entry.ID, "label", dc.Label())
		dc.Close()
		return
	}
	if err := n.cfg.Registry.AttachChannel(entry.ID, dc); err != nil {
		slog.Warn("attach data channel", "peer", entry.ID, "error", err)
		dc.Close()
	}
}

func (n *Negotiator) handleAnswer(rec signaling.Record) {
	entry := n.cfg.Registry.Get(rec.Sender)
	if entry == nil || entry.State != peer.StateLocalOfferSet {
		state := "unknown"
		if entry != nil {
			state = entry.State.String()
		}
		slog.Debug("discarding answer", "peer", rec.Sender, "state", state)
		return
	}

	answer := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: rec.SDP}
	if err := entry.Conn.SetRemoteDescription(answer); err != nil {
		n.fail(entry, errs.Negotiation("set remote answer", entry.ID, err))
		return
	}
	if err := n.cfg.Registry.Transition(entry.ID, peer.StateRemoteAnswerSet); err != nil {
		n.fail(entry, errs.Negotiation("set remote answer", entry.ID, err))
		return
	}
	n.flushCandidates(entry)
}

// handleICECandidate applies a remote candidate. Candidates for peers with
// no entry are discarded; candidates that arrive before the remote
// description are buffered on the entry.
func (n *Negotiator) handleICECandidate(rec signaling.Record) {
	entry := n.cfg.Registry.Get(rec.Sender)
	if entry == nil {
		slog.Debug("discarding candidate for unknown peer", "peer", rec.Sender)
		return
	}

	candidate, err := decodeCandidate(rec.Candidate)
	if err != nil {
		slog.Warn("dropping candidate", "peer", rec.Sender, "error", err)
		return
	}

	if entry.Conn == nil || entry.Conn.RemoteDescription() == nil {
		entry.Pending = append(entry.Pending, candidate)
		return
	}
	if err := entry.Conn.AddICECandidate(candidate); err != nil {
		slog.Warn("add ICE candidate", "peer", entry.ID, "error", err)
	}
}

func (n *Negotiator) flushCandidates(entry *peer.Entry) {
	pending := entry.Pending
	entry.Pending = nil
	for _, c := range pending {
		if err := entry.Conn.AddICECandidate(c); err != nil {
			slog.Warn("add buffered ICE candidate", "peer", entry.ID, "error", err)
		}
	}
}

// connect creates the peer connection for entry and wires its callbacks.
func (n *Negotiator) connect(entry *peer.Entry, servers []pion.ICEServer) (*pion.PeerConnection, error) {
	pc, err := newPeerConnection(n.cfg.API, servers, n.cfg.ForceRelay)
	if err != nil {
		return nil, err
	}
	if _, set := n.cfg.Registry.UpsertConnection(entry.ID, pc); !set {
		pc.Close()
		return nil, errors.New("entry already has a connection")
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		n.cfg.Loop.Post(func() { n.publishCandidate(entry, init) })
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		n.cfg.Loop.Post(func() { n.handleConnectionState(entry, state) })
	})
	return pc, nil
}

func (n *Negotiator) publishCandidate(entry *peer.Entry, c pion.ICECandidateInit) {
	if !n.current(entry) {
		return
	}
	raw, err := encodeCandidate(c)
	if err != nil {
		slog.Warn("encode candidate", "peer", entry.ID, "error", err)
		return
	}
	n.publish(signaling.Record{Type: signaling.TypeICECandidate, Candidate: raw}, entry.ID)
}

func (n *Negotiator) handleConnectionState(entry *peer.Entry, state pion.PeerConnectionState) {
	if !n.current(entry) {
		return
	}
	slog.Debug("connection state", "peer", entry.ID, "state", state)

	switch state {
	case pion.PeerConnectionStateFailed:
		n.fail(entry, errs.Negotiation("connect", entry.ID, errs.ErrConnectionFailed))
	case pion.PeerConnectionStateClosed:
		n.cfg.Registry.RemoveEntry(entry)
	}
}

// withICEServers fetches ICE servers off the loop and resumes with cont on
// the loop, provided entry survived the wait.
func (n *Negotiator) withICEServers(entry *peer.Entry, cont func(*peer.Entry, []pion.ICEServer)) {
	gen := n.gen.Load()
	go func() {
		servers := n.cfg.ICE.ICEServers(n.ctx)
		n.cfg.Loop.Post(func() {
			if gen != n.gen.Load() || !n.current(entry) {
				slog.Debug("dropping stale negotiation", "peer", entry.ID)
				return
			}
			cont(entry, servers)
		})
	}()
}

func (n *Negotiator) armTimeout(entry *peer.Entry) {
	if n.cfg.NegotiationTimeout <= 0 {
		return
	}
	entry.Timer = time.AfterFunc(n.cfg.NegotiationTimeout, func() {
		n.cfg.Loop.Post(func() {
			if n.current(entry) && entry.State != peer.StateOpen {
				n.fail(entry, errs.Negotiation("negotiate", entry.ID, errs.ErrNegotiationTimeout))
			}
		})
	})
}

// current reports whether entry is still the registered entry for its peer.
func (n *Negotiator) current(entry *peer.Entry) bool {
	return n.cfg.Registry.Get(entry.ID) == entry
}

// fail abandons one peer. Other peers are unaffected.
func (n *Negotiator) fail(entry *peer.Entry, err error) {
	if !n.current(entry) {
		return
	}
	slog.Warn("negotiation failed", "peer", entry.ID, "state", entry.State, "error", err)
	if terr := n.cfg.Registry.Transition(entry.ID, peer.StateFailed); terr != nil {
		slog.Debug("mark failed", "peer", entry.ID, "error", terr)
	}
	n.cfg.Registry.RemoveEntry(entry)
	if n.cfg.OnPeerFailed != nil {
		n.cfg.OnPeerFailed(entry.ID, err)
	}
}

// publish queues rec on the ordered outbox. Records queued before a reset
// are dropped. The returned channel receives the outcome exactly once.
func (n *Negotiator) publish(rec signaling.Record, target string) <-chan error {
	rec.RoomID = n.room
	rec.Sender = n.cfg.Self.PeerID
	rec.SenderName = n.cfg.Self.DisplayName
	rec.Target = target

	done := make(chan error, 1)
	gen := n.gen.Load()
	queued := n.outbox.Post(func() {
		if gen != n.gen.Load() {
			done <- ErrDropped
			return
		}
		err := n.cfg.Publisher.Publish(n.ctx, rec)
		done <- err
		if err != nil {
			slog.Warn("publish failed", "type", rec.Type, "peer", target, "error", err)
			if rec.Type == signaling.TypeOffer || rec.Type == signaling.TypeAnswer {
				n.cfg.Loop.Post(func() { n.failPeer(gen, target, err) })
			}
		}
	})
	if !queued {
		done <- loop.ErrStopped
	}
	return done
}

func (n *Negotiator) failPeer(gen uint64, id string, err error) {
	if gen != n.gen.Load() {
		return
	}
	if entry := n.cfg.Registry.Get(id); entry != nil {
		n.fail(entry, errs.Negotiation("publish", id, err))
	}
}
