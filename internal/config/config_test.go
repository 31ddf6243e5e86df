package config

import (
	"errors"
	"testing"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/errs"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"P2PCHAT_RELAY_URL", "P2PCHAT_CREDENTIAL_URL", "P2PCHAT_STUN_URLS",
		"P2PCHAT_SUBSCRIBE_TIMEOUT", "P2PCHAT_NEGOTIATION_TIMEOUT", "P2PCHAT_CREDENTIAL_TIMEOUT",
		"P2PCHAT_FORCE_RELAY", "P2PCHAT_VERBOSE",
		"P2PCHAT_LISTEN_ADDR", "P2PCHAT_DATA_DIR", "P2PCHAT_TURN_URLS", "P2PCHAT_TURN_SECRET", "P2PCHAT_TURN_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RelayURL != DefaultRelayURL {
		t.Fatalf("expected default relay URL, got %q", cfg.RelayURL)
	}
	if cfg.CredentialURL != DefaultCredentialURL {
		t.Fatalf("expected default credential URL, got %q", cfg.CredentialURL)
	}
	if len(cfg.STUNServers) != 3 {
		t.Fatalf("expected 3 default STUN servers, got %v", cfg.STUNServers)
	}
	if cfg.SubscribeTimeout != 10*time.Second {
		t.Fatalf("expected 10s subscribe timeout, got %v", cfg.SubscribeTimeout)
	}
	if cfg.SendRetryDelay != time.Second {
		t.Fatalf("expected 1s retry delay, got %v", cfg.SendRetryDelay)
	}
}

func TestLoadPriority(t *testing.T) {
	clearEnv(t)
	t.Setenv("P2PCHAT_RELAY_URL", "http://env.example:9000")
	t.Setenv("P2PCHAT_STUN_URLS", "stun:a.example:3478, stun:b.example:3478")
	t.Setenv("P2PCHAT_SUBSCRIBE_TIMEOUT", "3s")
	t.Setenv("P2PCHAT_FORCE_RELAY", "true")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RelayURL != "http://env.example:9000" {
		t.Fatalf("expected env relay URL, got %q", cfg.RelayURL)
	}
	if len(cfg.STUNServers) != 2 || cfg.STUNServers[1] != "stun:b.example:3478" {
		t.Fatalf("expected env STUN list, got %v", cfg.STUNServers)
	}
	if cfg.SubscribeTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", cfg.SubscribeTimeout)
	}
	if !cfg.ForceRelay {
		t.Fatalf("expected force relay from env")
	}

	cfg, err = Load(Options{RelayURL: "http://flag.example", SubscribeTimeout: time.Second})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RelayURL != "http://flag.example" {
		t.Fatalf("expected flag to win, got %q", cfg.RelayURL)
	}
	if cfg.SubscribeTimeout != time.Second {
		t.Fatalf("expected flag timeout to win, got %v", cfg.SubscribeTimeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("P2PCHAT_NEGOTIATION_TIMEOUT", "soon")

	if _, err := Load(Options{}); err == nil {
		t.Fatalf("expected error for unparsable duration")
	}
	if _, err := Load(Options{RelayURL: "not a url", NegotiationTimeout: time.Second}); err == nil {
		t.Fatalf("expected error for invalid relay URL")
	}
}

func TestCredentialURLOptOut(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{CredentialURL: "none"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CredentialURL != "" {
		t.Fatalf("expected empty credential URL, got %q", cfg.CredentialURL)
	}
}

func TestRoomLinkRoundTrip(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{RelayURL: "https://chat.example/"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	link := cfg.RoomLink("sleepy-ramen-comet")
	if link != "https://chat.example/?room=sleepy-ramen-comet" {
		t.Fatalf("unexpected link %q", link)
	}

	room, err := ParseRoomInput(link)
	if err != nil {
		t.Fatalf("ParseRoomInput: %v", err)
	}
	if room != "sleepy-ramen-comet" {
		t.Fatalf("expected room from link, got %q", room)
	}
}

func TestParseRoomInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"lobby", "lobby", false},
		{"  lobby  ", "lobby", false},
		{"?room=abc", "abc", false},
		{"http://x.example/index.html?theme=dark&room=abc", "abc", false},
		{"", "", true},
		{"two words", "", true},
		{"http://x.example/?theme=dark&room=", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRoomInput(tt.in)
		if tt.wantErr {
			if !errors.Is(err, errs.ErrInvalidRoom) {
				t.Fatalf("ParseRoomInput(%q): expected ErrInvalidRoom, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRoomInput(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseRoomInput(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestLoadRelay(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadRelay(RelayOptions{})
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr || cfg.DataDir != "" || cfg.TURNEnabled() {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	if _, err := LoadRelay(RelayOptions{TURNSecret: "s3cret"}); err == nil {
		t.Fatalf("expected error for secret without URLs")
	}

	t.Setenv("P2PCHAT_TURN_URLS", "turn:turn.example:3478?transport=udp")
	cfg, err = LoadRelay(RelayOptions{TURNSecret: "s3cret"})
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if !cfg.TURNEnabled() || cfg.TURNTTL != DefaultTURNTTL {
		t.Fatalf("expected TURN enabled with default TTL, got %+v", cfg)
	}
}
