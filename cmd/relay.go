package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/config"
	"github.com/abdulmanan69/p2pchat/internal/relay"
	"github.com/abdulmanan69/p2pchat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagListen     string
	flagDataDir    string
	flagTURNSecret string
	flagTURNURLs   []string
	flagTURNTTL    time.Duration
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay",
	Long: `Run the signaling relay that chat clients publish and subscribe through.
With a TURN shared secret it also hands out short-lived TURN credentials
from /turn-creds.

Examples:
  p2pchat relay
  p2pchat relay --listen :9000 --data-dir ./signals
  p2pchat relay --turn-secret s3cret --turn-urls turn:turn.example.com:3478`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd.Context())
	},
}

func init() {
	relayCmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (env: P2PCHAT_LISTEN_ADDR)")
	relayCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "Signal log directory, in memory when empty (env: P2PCHAT_DATA_DIR)")
	relayCmd.Flags().StringVar(&flagTURNSecret, "turn-secret", "", "TURN REST shared secret (env: P2PCHAT_TURN_SECRET)")
	relayCmd.Flags().StringSliceVar(&flagTURNURLs, "turn-urls", nil, "TURN server URLs (env: P2PCHAT_TURN_URLS)")
	relayCmd.Flags().DurationVar(&flagTURNTTL, "turn-ttl", 0, "TURN credential lifetime (env: P2PCHAT_TURN_TTL)")
}

func runRelay(parent context.Context) error {
	cfg, err := config.LoadRelay(config.RelayOptions{
		ListenAddr: flagListen,
		DataDir:    flagDataDir,
		TURNURLs:   flagTURNURLs,
		TURNSecret: flagTURNSecret,
		TURNTTL:    flagTURNTTL,
	})
	if err != nil {
		return err
	}

	srv, err := relay.NewServer(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintSuccessf("Relay starting on %s", cfg.ListenAddr)
	if cfg.TURNEnabled() {
		ui.PrintInfof("Issuing TURN credentials for %d server(s)", len(cfg.TURNURLs))
	}
	return srv.Run(ctx)
}
