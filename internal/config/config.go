package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/errs"
)

// Default configuration values
const (
	DefaultRelayURL           = "http://localhost:8080"
	DefaultCredentialURL      = "https://speed.cloudflare.com/turn-creds"
	DefaultSubscribeTimeout   = 10 * time.Second
	DefaultCredentialTimeout  = 5 * time.Second
	DefaultSendRetryDelay     = time.Second
	DefaultNegotiationTimeout = 30 * time.Second
)

var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun.cloudflare.com:3478",
}

// Config holds the chat client configuration
type Config struct {
	// RelayURL is the base HTTP URL of the signaling relay
	RelayURL string

	// CredentialURL serves short-lived TURN credentials. Empty disables TURN.
	CredentialURL string

	STUNServers []string

	SubscribeTimeout   time.Duration
	CredentialTimeout  time.Duration
	SendRetryDelay     time.Duration
	NegotiationTimeout time.Duration

	// ForceRelay restricts ICE to relay candidates when TURN is available
	ForceRelay bool
	Verbose    bool
}

// Options for loading config with CLI flag overrides. Zero values fall
// through to the environment and then to defaults.
type Options struct {
	RelayURL           string
	CredentialURL      string
	STUNServers        []string
	SubscribeTimeout   time.Duration
	NegotiationTimeout time.Duration
	ForceRelay         bool
	Verbose            bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		RelayURL:           firstNonEmpty(opts.RelayURL, os.Getenv("P2PCHAT_RELAY_URL"), DefaultRelayURL),
		CredentialURL:      firstNonEmpty(opts.CredentialURL, os.Getenv("P2PCHAT_CREDENTIAL_URL"), DefaultCredentialURL),
		STUNServers:        opts.STUNServers,
		SubscribeTimeout:   opts.SubscribeTimeout,
		CredentialTimeout:  DefaultCredentialTimeout,
		SendRetryDelay:     DefaultSendRetryDelay,
		NegotiationTimeout: opts.NegotiationTimeout,
		ForceRelay:         opts.ForceRelay,
		Verbose:            opts.Verbose,
	}

	// "none" is an explicit opt-out of the credential endpoint
	if cfg.CredentialURL == "none" {
		cfg.CredentialURL = ""
	}

	if _, err := url.ParseRequestURI(cfg.RelayURL); err != nil {
		return nil, fmt.Errorf("invalid relay URL %q: %w", cfg.RelayURL, err)
	}

	if len(cfg.STUNServers) == 0 {
		cfg.STUNServers = splitList(os.Getenv("P2PCHAT_STUN_URLS"))
	}
	if len(cfg.STUNServers) == 0 {
		cfg.STUNServers = append([]string(nil), DefaultSTUNServers...)
	}

	var err error
	if cfg.SubscribeTimeout == 0 {
		if cfg.SubscribeTimeout, err = durationEnv("P2PCHAT_SUBSCRIBE_TIMEOUT", DefaultSubscribeTimeout); err != nil {
			return nil, err
		}
	}
	if cfg.NegotiationTimeout == 0 {
		if cfg.NegotiationTimeout, err = durationEnv("P2PCHAT_NEGOTIATION_TIMEOUT", DefaultNegotiationTimeout); err != nil {
			return nil, err
		}
	}
	if cfg.CredentialTimeout, err = durationEnv("P2PCHAT_CREDENTIAL_TIMEOUT", DefaultCredentialTimeout); err != nil {
		return nil, err
	}

	if !cfg.ForceRelay {
		cfg.ForceRelay = boolEnv("P2PCHAT_FORCE_RELAY")
	}
	if !cfg.Verbose {
		cfg.Verbose = boolEnv("P2PCHAT_VERBOSE")
	}

	return cfg, nil
}

// RoomLink returns a shareable link that joins roomID when passed to
// "p2pchat chat".
func (c *Config) RoomLink(roomID string) string {
	return strings.TrimRight(c.RelayURL, "/") + "/?" + url.Values{"room": {roomID}}.Encode()
}

// ParseRoomInput accepts either a bare room id or a link carrying a
// "room" query parameter and returns the room id.
func ParseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	room := input

	if strings.Contains(input, "room=") {
		raw := input
		if i := strings.Index(raw, "?"); i >= 0 {
			raw = raw[i+1:]
		}
		values, err := url.ParseQuery(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errs.ErrInvalidRoom, err)
		}
		room = strings.TrimSpace(values.Get("room"))
	}

	if err := ValidateRoomID(room); err != nil {
		return "", err
	}
	return room, nil
}

func ValidateRoomID(room string) error {
	if room == "" {
		return fmt.Errorf("%w: empty", errs.ErrInvalidRoom)
	}
	if len(room) > 128 {
		return fmt.Errorf("%w: longer than 128 characters", errs.ErrInvalidRoom)
	}
	if strings.ContainsAny(room, "/ \t\r\n?#") {
		return fmt.Errorf("%w: %q contains reserved characters", errs.ErrInvalidRoom, room)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return d, nil
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}
