package peer

import (
	"fmt"

	"github.com/abdulmanan69/p2pchat/internal/errs"
)

type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// State is the negotiation state of one remote peer.
type State int

const (
	StateNone State = iota
	StateOffering
	StateLocalOfferSet
	StateRemoteAnswerSet
	StateRemoteOfferSet
	StateAnswering
	StateLocalAnswerSet
	StateOpen
	StateFailed
	StateClosed
)

var stateNames = map[State]string{
	StateNone:            "none",
	StateOffering:        "offering",
	StateLocalOfferSet:   "local-offer-set",
	StateRemoteAnswerSet: "remote-answer-set",
	StateRemoteOfferSet:  "remote-offer-set",
	StateAnswering:       "answering",
	StateLocalAnswerSet:  "local-answer-set",
	StateOpen:            "open",
	StateFailed:          "failed",
	StateClosed:          "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal states accept no further transitions.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// Negotiating reports whether a local offer is outstanding, which is when
// an incoming offer is glare.
func (s State) Negotiating() bool {
	return s == StateOffering || s == StateLocalOfferSet
}

// Forward edges per role. Any non-terminal state may also move to Failed or
// Closed.
var transitions = map[Role]map[State]State{
	RoleInitiator: {
		StateNone:            StateOffering,
		StateOffering:        StateLocalOfferSet,
		StateLocalOfferSet:   StateRemoteAnswerSet,
		StateRemoteAnswerSet: StateOpen,
	},
	RoleResponder: {
		StateNone:           StateRemoteOfferSet,
		StateRemoteOfferSet: StateAnswering,
		StateAnswering:      StateLocalAnswerSet,
		StateLocalAnswerSet: StateOpen,
	},
}

func canTransition(role Role, from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed || to == StateClosed {
		return true
	}
	next, ok := transitions[role][from]
	return ok && next == to
}

func transitionError(id string, role Role, from, to State) error {
	return fmt.Errorf("%w: %s %s -> %s (peer %s)", errs.ErrInvalidTransition, role, from, to, id)
}
