package relay

import (
	"log/slog"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/signaling"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the subscriber.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the subscriber.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames.
	maxMessageSize = 4 * 1024

	sendBuffer = 256
)

// Client is one room subscription over a websocket.
type Client struct {
	id   string
	room string
	hub  *Hub
	conn *websocket.Conn

	// send is drained by WritePump. Only the hub closes it.
	send chan signaling.Frame
}

func newClient(hub *Hub, conn *websocket.Conn, room string) *Client {
	return &Client{
		id:   uuid.NewString(),
		room: room,
		hub:  hub,
		conn: conn,
		send: make(chan signaling.Frame, sendBuffer),
	}
}

// ReadPump watches the connection for closure. Inbound data frames are
// ignored: records are published over HTTP.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Debug("subscriber read error", "client", c.id, "error", err)
			}
			return
		}
	}
}

// WritePump writes frames from the hub and keeps the connection alive with
// pings. It is the only writer on the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				slog.Debug("subscriber write error", "client", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
