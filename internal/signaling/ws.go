package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/dns"
	"github.com/abdulmanan69/p2pchat/internal/errs"
	"github.com/abdulmanan69/p2pchat/internal/version"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	publishTimeout = 10 * time.Second
)

// WSTransport talks to the relay server: subscriptions are a WebSocket
// stream, inserts are plain HTTP POSTs.
type WSTransport struct {
	base       *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
}

func NewWSTransport(relayURL string) (*WSTransport, error) {
	u, err := url.Parse(strings.TrimRight(relayURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid relay URL: unsupported scheme %q", u.Scheme)
	}

	return &WSTransport{
		base: u,
		httpClient: &http.Client{
			Timeout:   publishTimeout,
			Transport: &http.Transport{DialContext: dns.DialContext},
		},
		dialer: &websocket.Dialer{
			NetDialContext:   dns.DialContext,
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

func (t *WSTransport) streamURL(roomID string) string {
	u := *t.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	u.RawQuery = url.Values{"room": {roomID}}.Encode()
	return u.String()
}

func (t *WSTransport) signalsURL(roomID string) string {
	u := *t.base
	u.Path += "/rooms/" + url.PathEscape(roomID) + "/signals"
	return u.String()
}

// Publish inserts rec into the relay log.
func (t *WSTransport) Publish(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return errs.Transport("publish", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.signalsURL(rec.RoomID), bytes.NewReader(body))
	if err != nil {
		return errs.Transport("publish", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return errs.Transport("publish", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errs.Transport("publish", fmt.Errorf("relay rejected %s record: %s: %s", rec.Type, resp.Status, strings.TrimSpace(string(msg))))
	}
	return nil
}

// Subscribe opens the room stream in the background. Progress is reported
// through h.OnStatus: connecting, then subscribed or error.
func (t *WSTransport) Subscribe(ctx context.Context, roomID string, h Handler) (Subscription, error) {
	if roomID == "" {
		return nil, errs.Transport("subscribe", fmt.Errorf("room id is required"))
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &wsSubscription{
		handler: h,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(ctx, t.dialer, t.streamURL(roomID))
	return s, nil
}

type wsSubscription struct {
	handler Handler
	cancel  context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

func (s *wsSubscription) status(st Status, err error) {
	if s.handler.OnStatus != nil {
		s.handler.OnStatus(st, err)
	}
}

func (s *wsSubscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *wsSubscription) run(ctx context.Context, dialer *websocket.Dialer, streamURL string) {
	s.status(StatusConnecting, nil)

	header := http.Header{"User-Agent": {version.UserAgent()}}
	conn, _, err := dialer.DialContext(ctx, streamURL, header)
	if err != nil {
		if s.closed() {
			s.status(StatusClosed, nil)
			return
		}
		s.status(StatusError, errs.Transport("subscribe", err))
		return
	}

	if s.closed() {
		conn.Close()
		s.status(StatusClosed, nil)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.writePump(conn)
	s.readPump(conn)
}

// readPump delivers frames until the connection drops.
func (s *wsSubscription) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if s.closed() {
				s.status(StatusClosed, nil)
				return
			}
			s.status(StatusError, errs.Transport("subscribe", err))
			return
		}

		switch {
		case frame.Record != nil:
			if s.handler.OnRecord != nil {
				s.handler.OnRecord(*frame.Record)
			}
		case frame.Status == FrameSubscribed:
			s.status(StatusSubscribed, nil)
		case frame.Status == FrameError:
			s.status(StatusError, errs.Transport("subscribe", fmt.Errorf("relay: %s", frame.Error)))
		default:
			slog.Debug("ignoring unknown relay frame", "status", frame.Status)
		}
	}
}

// writePump keeps the stream alive with pings and sends the close frame on
// Unsubscribe.
func (s *wsSubscription) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return
		}
	}
}

func (s *wsSubscription) Unsubscribe() error {
	s.doneOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
	return nil
}
