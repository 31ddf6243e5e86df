package signaling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/errs"
)

type Type string

// Record types.
const (
	TypeNewPeer      Type = "new-peer"
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"
)

// Record is one append-only signaling row. Target is empty for broadcasts.
// Candidate holds a JSON-encoded ICECandidateInit.
type Record struct {
	ID         string    `msgpack:"id"`
	RoomID     string    `msgpack:"room_id"`
	Sender     string    `msgpack:"sender"`
	SenderName string    `msgpack:"sender_name"`
	Target     string    `msgpack:"target"`
	Type       Type      `msgpack:"type"`
	SDP        string    `msgpack:"sdp"`
	Candidate  string    `msgpack:"candidate"`
	CreatedAt  time.Time `msgpack:"created_at"`
}

// wireRecord is the JSON form. Absent optional columns are null.
type wireRecord struct {
	ID         string     `json:"id,omitempty"`
	RoomID     string     `json:"room_id"`
	Sender     string     `json:"sender"`
	SenderName string     `json:"sender_name"`
	Target     *string    `json:"target"`
	Type       Type       `json:"type"`
	SDP        *string    `json:"sdp"`
	Candidate  *string    `json:"candidate"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		ID:         r.ID,
		RoomID:     r.RoomID,
		Sender:     r.Sender,
		SenderName: r.SenderName,
		Target:     nullable(r.Target),
		Type:       r.Type,
		SDP:        nullable(r.SDP),
		Candidate:  nullable(r.Candidate),
	}
	if !r.CreatedAt.IsZero() {
		w.CreatedAt = &r.CreatedAt
	}
	return json.Marshal(w)
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Record{
		ID:         w.ID,
		RoomID:     w.RoomID,
		Sender:     w.Sender,
		SenderName: w.SenderName,
		Target:     deref(w.Target),
		Type:       w.Type,
		SDP:        deref(w.SDP),
		Candidate:  deref(w.Candidate),
	}
	if w.CreatedAt != nil {
		r.CreatedAt = *w.CreatedAt
	}
	return nil
}

// Validate checks the record against the relay schema.
func (r Record) Validate() error {
	var problem string
	switch {
	case r.RoomID == "":
		problem = "room_id is required"
	case r.Sender == "":
		problem = "sender is required"
	case r.Type != TypeNewPeer && r.Type != TypeOffer && r.Type != TypeAnswer && r.Type != TypeICECandidate:
		problem = fmt.Sprintf("unknown type %q", r.Type)
	case (r.Type == TypeOffer || r.Type == TypeAnswer) && r.SDP == "":
		problem = fmt.Sprintf("%s requires sdp", r.Type)
	case r.Type == TypeICECandidate && r.Candidate == "":
		problem = "ice-candidate requires candidate"
	case r.Type != TypeNewPeer && r.Target == "":
		problem = fmt.Sprintf("%s requires target", r.Type)
	default:
		return nil
	}
	return errs.Malformed("validate record", fmt.Errorf("%s", problem))
}

// IsFor reports whether a record addressed to target (or broadcast) concerns
// the local peer self. Records self sent are never for self.
func (r Record) IsFor(self string) bool {
	if r.Sender == self {
		return false
	}
	return r.Target == "" || r.Target == self
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
