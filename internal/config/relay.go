package config

import (
	"fmt"
	"os"
	"time"
)

const (
	DefaultListenAddr = ":8080"
	DefaultTURNTTL    = 12 * time.Hour
)

// RelayConfig configures the signaling relay server
type RelayConfig struct {
	ListenAddr string

	// DataDir holds the signal log. Empty keeps it in memory.
	DataDir string

	// TURN REST credentials served from /turn-creds. Disabled when
	// TURNSecret is empty.
	TURNURLs   []string
	TURNSecret string
	TURNTTL    time.Duration
}

type RelayOptions struct {
	ListenAddr string
	DataDir    string
	TURNURLs   []string
	TURNSecret string
	TURNTTL    time.Duration
}

// LoadRelay applies the same flag > env > default priority as Load.
func LoadRelay(opts RelayOptions) (*RelayConfig, error) {
	cfg := &RelayConfig{
		ListenAddr: firstNonEmpty(opts.ListenAddr, os.Getenv("P2PCHAT_LISTEN_ADDR"), DefaultListenAddr),
		DataDir:    firstNonEmpty(opts.DataDir, os.Getenv("P2PCHAT_DATA_DIR")),
		TURNURLs:   opts.TURNURLs,
		TURNSecret: firstNonEmpty(opts.TURNSecret, os.Getenv("P2PCHAT_TURN_SECRET")),
		TURNTTL:    opts.TURNTTL,
	}

	if len(cfg.TURNURLs) == 0 {
		cfg.TURNURLs = splitList(os.Getenv("P2PCHAT_TURN_URLS"))
	}

	if cfg.TURNTTL == 0 {
		ttl, err := durationEnv("P2PCHAT_TURN_TTL", DefaultTURNTTL)
		if err != nil {
			return nil, err
		}
		cfg.TURNTTL = ttl
	}

	if cfg.TURNSecret != "" && len(cfg.TURNURLs) == 0 {
		return nil, fmt.Errorf("TURN secret is set but no TURN URLs are configured")
	}

	return cfg, nil
}

// TURNEnabled reports whether the relay should issue TURN credentials.
func (c *RelayConfig) TURNEnabled() bool {
	return c.TURNSecret != "" && len(c.TURNURLs) > 0
}
