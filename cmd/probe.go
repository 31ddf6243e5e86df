package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/config"
	"github.com/abdulmanan69/p2pchat/internal/iceauth"
	"github.com/abdulmanan69/p2pchat/internal/negotiator"
	"github.com/abdulmanan69/p2pchat/internal/probe"
	"github.com/abdulmanan69/p2pchat/internal/ui"
	"github.com/spf13/cobra"
)

var flagProbeWait time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check which ICE candidates this network can gather",
	Long: `Fetch ICE servers the same way chat does and gather candidates against
them, then report whether STUN and TURN paths are usable from here.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd.Context())
	},
}

func init() {
	probeCmd.Flags().StringVar(&flagCredentialURL, "credentials-url", "", `TURN credential endpoint, or "none" (env: P2PCHAT_CREDENTIAL_URL)`)
	probeCmd.Flags().StringSliceVar(&flagSTUN, "stun", nil, "STUN server URLs (env: P2PCHAT_STUN_URLS)")
	probeCmd.Flags().DurationVar(&flagProbeWait, "duration", 8*time.Second, "How long to wait for candidate gathering")
}

func runProbe(ctx context.Context) error {
	cfg, err := config.Load(config.Options{
		CredentialURL: flagCredentialURL,
		STUNServers:   flagSTUN,
	})
	if err != nil {
		return err
	}

	fetcher := iceauth.NewFetcher(cfg.CredentialURL, cfg.STUNServers, cfg.CredentialTimeout)

	sp := ui.NewConnectionSpinner("Fetching ICE servers...")
	sp.Start()
	servers := fetcher.ICEServers(ctx)
	sp.Stop()

	fmt.Println(ui.ICEServersView(servers))

	sp = ui.NewSimpleSpinner("Gathering candidates...")
	sp.Start()
	report, err := probe.Run(ctx, negotiator.NewAPI(nil), servers, flagProbeWait)
	if err != nil {
		sp.Error("Probe failed")
		return err
	}
	sp.Stop()

	fmt.Println(ui.ProbeReportView(report))
	return nil
}
