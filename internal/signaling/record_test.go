package signaling

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abdulmanan69/p2pchat/internal/errs"
)

func TestRecordJSONUsesNullForAbsentColumns(t *testing.T) {
	t.Parallel()

	rec := Record{RoomID: "lobby", Sender: "a", SenderName: "RedFox1", Type: TypeNewPeer}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"target", "sdp", "candidate"} {
		v, ok := raw[key]
		if !ok || v != nil {
			t.Fatalf("expected %s to be null, got %v (present=%v)", key, v, ok)
		}
	}
	if raw["type"] != "new-peer" {
		t.Fatalf("expected type new-peer, got %v", raw["type"])
	}
}

func TestRecordDecodesRelayRow(t *testing.T) {
	t.Parallel()

	row := `{"id":"7","room_id":"lobby","sender":"b","sender_name":"BlueWolf7","target":"a",` +
		`"type":"ice-candidate","sdp":null,"candidate":"{\"candidate\":\"candidate:1 1 udp 1 10.0.0.1 5000 typ host\"}",` +
		`"created_at":"2024-05-01T10:00:00Z"}`

	var rec Record
	if err := json.Unmarshal([]byte(row), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Target != "a" || rec.Type != TypeICECandidate || rec.SDP != "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !strings.Contains(rec.Candidate, "typ host") {
		t.Fatalf("expected candidate payload, got %q", rec.Candidate)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be parsed")
	}
}

func TestRecordValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  Record
		ok   bool
	}{
		{"presence", Record{RoomID: "r", Sender: "a", Type: TypeNewPeer}, true},
		{"offer", Record{RoomID: "r", Sender: "a", Target: "b", Type: TypeOffer, SDP: "v=0"}, true},
		{"offer without sdp", Record{RoomID: "r", Sender: "a", Target: "b", Type: TypeOffer}, false},
		{"answer without target", Record{RoomID: "r", Sender: "a", Type: TypeAnswer, SDP: "v=0"}, false},
		{"candidate without payload", Record{RoomID: "r", Sender: "a", Target: "b", Type: TypeICECandidate}, false},
		{"unknown type", Record{RoomID: "r", Sender: "a", Type: "bye"}, false},
		{"no sender", Record{RoomID: "r", Type: TypeNewPeer}, false},
		{"no room", Record{Sender: "a", Type: TypeNewPeer}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.rec.Validate()
			if tt.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.ok && !errors.Is(err, errs.ErrMalformedMessage) {
				t.Fatalf("expected malformed error, got %v", err)
			}
		})
	}
}

func TestRecordIsFor(t *testing.T) {
	t.Parallel()

	if (Record{Sender: "me"}).IsFor("me") {
		t.Fatalf("own records must be filtered")
	}
	if !(Record{Sender: "other"}).IsFor("me") {
		t.Fatalf("broadcast records are for everyone")
	}
	if !(Record{Sender: "other", Target: "me"}).IsFor("me") {
		t.Fatalf("records targeted at me are for me")
	}
	if (Record{Sender: "other", Target: "third"}).IsFor("me") {
		t.Fatalf("records targeted elsewhere are not for me")
	}
}
