package relay

import (
	"testing"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/signaling"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore("")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRecentIsOrderedAndRoomScoped(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	// a fixed clock forces the sequence number to break ties
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	var ids []string
	for _, sender := range []string{"a", "b", "c"} {
		rec, err := s.Append(signaling.Record{RoomID: "lobby", Sender: sender, Type: signaling.TypeNewPeer})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if rec.ID == "" || !rec.CreatedAt.Equal(fixed) {
			t.Fatalf("expected stamped record, got %+v", rec)
		}
		ids = append(ids, rec.ID)
	}
	if _, err := s.Append(signaling.Record{RoomID: "lobby2", Sender: "z", Type: signaling.TypeNewPeer}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	all, err := s.Recent("lobby", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records in lobby, got %d", len(all))
	}
	for i, rec := range all {
		if rec.ID != ids[i] {
			t.Fatalf("record %d: expected id %s, got %s", i, ids[i], rec.ID)
		}
	}

	last, err := s.Recent("lobby", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(last) != 2 || last[0].Sender != "b" || last[1].Sender != "c" {
		t.Fatalf("expected the two newest records oldest first, got %+v", last)
	}
}

func TestStoreKeepsOptionalFields(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	in := signaling.Record{
		RoomID:     "lobby",
		Sender:     "a",
		SenderName: "RedTiger1",
		Target:     "b",
		Type:       signaling.TypeICECandidate,
		Candidate:  `{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`,
	}
	if _, err := s.Append(in); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Recent("lobby", 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Target != "b" || got[0].Candidate != in.Candidate || got[0].SenderName != "RedTiger1" {
		t.Fatalf("unexpected stored record %+v", got)
	}
}

func TestStoreEmptyRoom(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	got, err := s.Recent("nobody-here", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}
