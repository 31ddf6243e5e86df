package errs

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the chat core wraps exactly one of
// these so callers can branch with errors.Is.
var (
	ErrTransport        = errors.New("signaling transport error")
	ErrNegotiation      = errors.New("negotiation error")
	ErrMalformedMessage = errors.New("malformed message")
	ErrCredentialFetch  = errors.New("credential fetch error")
)

var (
	ErrSubscribeTimeout   = errors.New("room subscription timed out")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrChannelNotOpen     = errors.New("channel not open")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrAlreadyJoined      = errors.New("already joined a room")
	ErrNotJoined          = errors.New("not joined to a room")
	ErrInvalidRoom        = errors.New("invalid room id")
)

type Error struct {
	Kind error
	Op   string
	Peer string
	Err  error
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%v: %s (peer %s): %v", e.Kind, e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func Transport(op string, err error) *Error {
	return &Error{Kind: ErrTransport, Op: op, Err: err}
}

func Negotiation(op, peer string, err error) *Error {
	return &Error{Kind: ErrNegotiation, Op: op, Peer: peer, Err: err}
}

func Malformed(op string, err error) *Error {
	return &Error{Kind: ErrMalformedMessage, Op: op, Err: err}
}

func CredentialFetch(op string, err error) *Error {
	return &Error{Kind: ErrCredentialFetch, Op: op, Err: err}
}

// KindOf reports which error kind err belongs to, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrTransport, ErrNegotiation, ErrMalformedMessage, ErrCredentialFetch} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
