package relay

import (
	"context"
	"log/slog"

	"github.com/abdulmanan69/p2pchat/internal/signaling"
)

// Hub owns every room's subscriber set. All of its state is touched only by
// the goroutine running Run.
type Hub struct {
	rooms map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan signaling.Record
	counts     chan countRequest

	done chan struct{}
}

type countRequest struct {
	room  string
	reply chan int
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan signaling.Record),
		counts:     make(chan countRequest),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for c := range clients {
					close(c.send)
				}
			}
			h.rooms = nil
			return

		case c := <-h.register:
			clients := h.rooms[c.room]
			if clients == nil {
				clients = make(map[*Client]struct{})
				h.rooms[c.room] = clients
			}
			clients[c] = struct{}{}
			c.send <- signaling.Frame{Status: signaling.FrameSubscribed}
			slog.Info("subscriber joined", "room", c.room, "client", c.id, "subscribers", len(clients))

		case c := <-h.unregister:
			h.remove(c)

		case rec := <-h.broadcast:
			frame := signaling.Frame{Record: &rec}
			for c := range h.rooms[rec.RoomID] {
				select {
				case c.send <- frame:
				default:
					slog.Warn("dropping slow subscriber", "room", c.room, "client", c.id)
					h.remove(c)
				}
			}

		case req := <-h.counts:
			req.reply <- len(h.rooms[req.room])
		}
	}
}

func (h *Hub) remove(c *Client) {
	clients, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
		slog.Debug("room emptied", "room", c.room)
	}
	slog.Info("subscriber left", "room", c.room, "client", c.id)
}

// Register adds c to its room. The hub sends the subscribed frame first.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish fans rec out to every subscriber of its room, publisher included.
func (h *Hub) Publish(ctx context.Context, rec signaling.Record) error {
	select {
	case h.broadcast <- rec:
		return nil
	case <-h.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribers returns the number of live subscribers in room.
func (h *Hub) Subscribers(ctx context.Context, room string) (int, error) {
	req := countRequest{room: room, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
		return <-req.reply, nil
	case <-h.done:
		return 0, context.Canceled
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
