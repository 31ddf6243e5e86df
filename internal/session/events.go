package session

import "github.com/abdulmanan69/p2pchat/internal/chat"

// Status is the session's connection status as shown to the user.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	}
	return "unknown"
}

type EventKind int

const (
	EventStatus EventKind = iota
	EventMessage
	EventPeerJoined
	EventPeerLeft
	EventPeerFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventMessage:
		return "message"
	case EventPeerJoined:
		return "peer-joined"
	case EventPeerLeft:
		return "peer-left"
	case EventPeerFailed:
		return "peer-failed"
	}
	return "unknown"
}

// Event is one notification from a Session. Which fields are set depends on
// Kind.
type Event struct {
	Kind EventKind

	// EventStatus
	Status Status

	// EventMessage, EventPeer*
	PeerID  string
	Message chat.Message
	Own     bool

	// EventStatus on failure, EventPeerFailed
	Err error
}
