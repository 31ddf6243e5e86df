package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/errs"
	"github.com/abdulmanan69/p2pchat/internal/peer"
	pion "github.com/pion/webrtc/v4"
)

// Poster schedules work on the session loop.
type Poster interface {
	Post(func()) bool
}

// Hooks are invoked on the loop.
type Hooks struct {
	OnOpen    func(peerID string)
	OnMessage func(peerID string, msg Message)
	OnClose   func(peerID string)
}

// Adapter turns data channels into chat message streams. All state it reads
// lives in the registry, which it only touches from the loop.
type Adapter struct {
	loop       Poster
	registry   *peer.Registry
	retryDelay time.Duration
	hooks      Hooks
}

func NewAdapter(l Poster, registry *peer.Registry, retryDelay time.Duration, hooks Hooks) *Adapter {
	return &Adapter{
		loop:       l,
		registry:   registry,
		retryDelay: retryDelay,
		hooks:      hooks,
	}
}

// Wrap attaches lifecycle and message observers to dc. Safe to call from any
// goroutine; the observers only post to the loop.
func (a *Adapter) Wrap(dc *pion.DataChannel, peerID string) {
	dc.OnOpen(func() {
		a.loop.Post(func() { a.handleOpen(dc, peerID) })
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		if !msg.IsString {
			slog.Debug("ignoring binary frame", "peer", peerID, "bytes", len(msg.Data))
			return
		}
		data := msg.Data
		a.loop.Post(func() { a.handleMessage(peerID, data) })
	})
	dc.OnClose(func() {
		a.loop.Post(func() { a.handleClose(dc, peerID) })
	})
	dc.OnError(func(err error) {
		slog.Warn("data channel error", "peer", peerID, "error", err)
	})
}

func (a *Adapter) handleOpen(ch peer.Channel, peerID string) {
	entry := a.registry.Get(peerID)
	if entry == nil || entry.Channel != ch {
		slog.Debug("closing channel of a stale peer entry", "peer", peerID)
		ch.Close()
		return
	}
	if err := a.registry.Transition(peerID, peer.StateOpen); err != nil {
		slog.Warn("unexpected channel open", "peer", peerID, "error", err)
		return
	}
	slog.Info("data channel open", "peer", peerID)
	if a.hooks.OnOpen != nil {
		a.hooks.OnOpen(peerID)
	}
}

func (a *Adapter) handleMessage(peerID string, data []byte) {
	msg, err := Decode(data)
	if err != nil {
		slog.Warn("dropping message", "peer", peerID, "error", err)
		return
	}
	if a.hooks.OnMessage != nil {
		a.hooks.OnMessage(peerID, msg)
	}
}

// handleClose removes the peer only if ch is still its channel, so a late
// close from a replaced entry leaves the new one alone.
func (a *Adapter) handleClose(ch peer.Channel, peerID string) {
	entry := a.registry.Get(peerID)
	if entry == nil || entry.Channel != ch {
		return
	}
	a.registry.Remove(peerID)
	slog.Info("data channel closed", "peer", peerID)
	if a.hooks.OnClose != nil {
		a.hooks.OnClose(peerID)
	}
}

// Send writes msg to one peer. A channel that is still connecting gets one
// deferred retry after the retry delay; if it is still not open then, the
// message is dropped.
func (a *Adapter) Send(peerID string, msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	return a.sendPayload(peerID, payload)
}

func (a *Adapter) sendPayload(peerID, payload string) error {
	entry := a.registry.Get(peerID)
	if entry == nil || entry.Channel == nil {
		slog.Debug("no channel for peer", "peer", peerID)
		return fmt.Errorf("send to %s: %w", peerID, errs.ErrChannelNotOpen)
	}

	switch state := entry.Channel.ReadyState(); state {
	case pion.DataChannelStateOpen:
		if err := entry.Channel.SendText(payload); err != nil {
			slog.Warn("send failed", "peer", peerID, "error", err)
			return fmt.Errorf("send to %s: %w", peerID, err)
		}
		return nil

	case pion.DataChannelStateConnecting:
		time.AfterFunc(a.retryDelay, func() {
			a.loop.Post(func() { a.retry(peerID, payload) })
		})
		return nil

	default:
		slog.Warn("channel not open", "peer", peerID, "state", state)
		return fmt.Errorf("send to %s: %w", peerID, errs.ErrChannelNotOpen)
	}
}

func (a *Adapter) retry(peerID, payload string) {
	entry := a.registry.Get(peerID)
	if entry == nil || entry.Channel == nil || entry.Channel.ReadyState() != pion.DataChannelStateOpen {
		slog.Warn("dropping message after retry", "peer", peerID)
		return
	}
	if err := entry.Channel.SendText(payload); err != nil {
		slog.Warn("send failed on retry", "peer", peerID, "error", err)
	}
}

// Broadcast sends msg to every peer with a data channel. Peers still
// negotiating have none yet and are skipped. Failures for one peer do not
// stop delivery to the others; they are joined into the returned error.
func (a *Adapter) Broadcast(msg Message) (int, error) {
	payload, err := Encode(msg)
	if err != nil {
		return 0, err
	}

	var (
		sent     int
		failures []error
	)
	for _, entry := range a.registry.All() {
		if entry.Channel == nil {
			slog.Debug("skipping peer without a channel", "peer", entry.ID, "state", entry.State)
			continue
		}
		if err := a.sendPayload(entry.ID, payload); err != nil {
			failures = append(failures, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(failures...)
}
