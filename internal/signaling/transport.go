package signaling

import "context"

type Status int

const (
	StatusConnecting Status = iota
	StatusSubscribed
	StatusError
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusSubscribed:
		return "subscribed"
	case StatusError:
		return "error"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// Handler receives records and status changes for one subscription.
// Callbacks for a subscription are never invoked concurrently.
type Handler struct {
	OnRecord func(Record)
	OnStatus func(Status, error)
}

// Transport is the room-scoped publish/subscribe relay. Every published
// record is delivered to all subscribers of its room, sender included.
type Transport interface {
	Subscribe(ctx context.Context, roomID string, h Handler) (Subscription, error)
	Publish(ctx context.Context, rec Record) error
}

type Subscription interface {
	// Unsubscribe stops delivery. Calling it more than once is a no-op.
	Unsubscribe() error
}

// Frame is one server-to-subscriber message on the relay stream.
type Frame struct {
	Status string  `json:"status,omitempty"`
	Record *Record `json:"record,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Frame statuses.
const (
	FrameSubscribed = "subscribed"
	FrameError      = "error"
)
