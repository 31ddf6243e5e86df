package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/peer"
	"github.com/abdulmanan69/p2pchat/internal/probe"
	"github.com/abdulmanan69/p2pchat/internal/session"
	pion "github.com/pion/webrtc/v4"
)

func TestICEServersViewHidesCredentials(t *testing.T) {
	out := ICEServersView([]pion.ICEServer{
		{URLs: []string{"stun:stun.example.com:3478"}},
		{URLs: []string{"turn:turn.example.com:3478"}, Username: "1700000000:abc", Credential: "s3cret-value"},
	})

	if strings.Contains(out, "s3cret-value") || strings.Contains(out, "1700000000:abc") {
		t.Fatalf("expected credentials to be hidden, got:\n%s", out)
	}
	for _, want := range []string{"stun:stun.example.com:3478", "turn:turn.example.com:3478", "turn", "yes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestICEServersViewEmpty(t *testing.T) {
	if out := ICEServersView(nil); !strings.Contains(out, "No ICE servers") {
		t.Fatalf("expected empty notice, got %q", out)
	}
}

func TestProbeReportView(t *testing.T) {
	tests := []struct {
		name    string
		counts  map[string]int
		verdict string
	}{
		{"relay", map[string]int{"host": 2, "relay": 1}, "TURN relay reachable"},
		{"stun only", map[string]int{"host": 1, "srflx": 1}, "No relay candidates"},
		{"host only", map[string]int{"host": 3}, "Only local candidates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &probe.Report{Counts: tt.counts, Complete: true, Elapsed: 1500 * time.Millisecond}
			out := ProbeReportView(r)
			if !strings.Contains(out, tt.verdict) {
				t.Fatalf("expected verdict %q, got:\n%s", tt.verdict, out)
			}
			if !strings.Contains(out, "gathering complete") {
				t.Fatalf("expected gathering status, got:\n%s", out)
			}
		})
	}
}

func TestPeersView(t *testing.T) {
	if out := PeersView(nil); !strings.Contains(out, "No peers") {
		t.Fatalf("expected empty notice, got %q", out)
	}

	out := PeersView([]session.PeerInfo{
		{ID: "aaaa1111", Role: peer.RoleInitiator, State: peer.StateOpen, CreatedAt: time.Now()},
		{ID: "bbbb2222", Role: peer.RoleResponder, State: peer.StateAnswering, CreatedAt: time.Now()},
	})
	for _, want := range []string{"aaaa1111", "initiator", "open", "bbbb2222", "responder", "answering"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRoomInfoView(t *testing.T) {
	out := NewRoomInfo("sleepy-ramen-comet", "http://localhost:8080/?room=sleepy-ramen-comet").View()
	if !strings.Contains(out, "sleepy-ramen-comet") || !strings.Contains(out, "http://localhost:8080/?room=") {
		t.Fatalf("expected room id and link, got:\n%s", out)
	}
}
