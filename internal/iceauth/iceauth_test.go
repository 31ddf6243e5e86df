package iceauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/errs"
)

var stun = []string{"stun:stun.l.google.com:19302", "stun:stun.cloudflare.com:3478"}

func serve(t *testing.T, h http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestFetchAcceptsSingleURL(t *testing.T) {
	t.Parallel()

	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"urls":"turn:turn.example:3478","username":"u","credential":"c"}`)
	})

	servers, err := NewFetcher(url, stun, time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(servers) != 3 {
		t.Fatalf("expected 2 STUN + 1 TURN, got %d", len(servers))
	}
	turn := servers[2]
	if len(turn.URLs) != 1 || turn.URLs[0] != "turn:turn.example:3478" || turn.Username != "u" || turn.Credential != "c" {
		t.Fatalf("unexpected TURN server %+v", turn)
	}
}

func TestFetchAcceptsURLList(t *testing.T) {
	t.Parallel()

	url := serve(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"urls":["turn:a.example:3478?transport=udp"," ","turns:a.example:5349"],"username":"u","credential":"c"}`)
	})

	servers, err := NewFetcher(url, stun, time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := servers[len(servers)-1].URLs; len(got) != 2 {
		t.Fatalf("expected blank URL to be dropped, got %v", got)
	}
}

func TestICEServersFallsBackToSTUN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }},
		{"missing credential", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"urls":"turn:turn.example:3478","username":"u"}`)
		}},
		{"garbage", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `<html>`) }},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := NewFetcher(serve(t, tt.handler), stun, 100*time.Millisecond)

			if _, err := f.Fetch(context.Background()); !errors.Is(err, errs.ErrCredentialFetch) {
				t.Fatalf("expected credential fetch error, got %v", err)
			}

			servers := f.ICEServers(context.Background())
			if len(servers) != len(stun) {
				t.Fatalf("expected STUN-only fallback, got %+v", servers)
			}
			for i, s := range servers {
				if s.URLs[0] != stun[i] || s.Username != "" {
					t.Fatalf("unexpected fallback server %+v", s)
				}
			}
		})
	}
}

func TestEmptyEndpointSkipsRequest(t *testing.T) {
	t.Parallel()

	f := NewFetcher("", stun, time.Second)
	if got := f.ICEServers(context.Background()); len(got) != len(stun) {
		t.Fatalf("expected defaults, got %+v", got)
	}
}
