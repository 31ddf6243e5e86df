package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/abdulmanan69/p2pchat/internal/config"
	"github.com/abdulmanan69/p2pchat/internal/identity"
	"github.com/abdulmanan69/p2pchat/internal/logging"
	"github.com/abdulmanan69/p2pchat/internal/session"
	"github.com/abdulmanan69/p2pchat/internal/ui"
	"github.com/abdulmanan69/p2pchat/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	flagRelayURL      string
	flagCredentialURL string
	flagSTUN          []string
	flagForceRelay    bool
	flagTheme         string
)

var chatCmd = &cobra.Command{
	Use:     "chat [room-or-link]",
	Aliases: []string{"c", "join"},
	Short:   "Join a chat room, or create one",
	Long: `Join a chat room by id or link. Without an argument a new room id is
generated and its link printed so others can join.

Examples:
  p2pchat chat
  p2pchat chat sleepy-ramen-comet
  p2pchat chat "http://localhost:8080/?room=sleepy-ramen-comet"
  p2pchat chat --force-relay --log-file chat.log lobby`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var input string
		if len(args) == 1 {
			input = args[0]
		}
		return runChat(cmd.Context(), input)
	},
}

func init() {
	chatCmd.Flags().StringVar(&flagRelayURL, "relay", "", "Signaling relay URL (env: P2PCHAT_RELAY_URL)")
	chatCmd.Flags().StringVar(&flagCredentialURL, "credentials-url", "", `TURN credential endpoint, or "none" (env: P2PCHAT_CREDENTIAL_URL)`)
	chatCmd.Flags().StringSliceVar(&flagSTUN, "stun", nil, "STUN server URLs (env: P2PCHAT_STUN_URLS)")
	chatCmd.Flags().BoolVar(&flagForceRelay, "force-relay", false, "Only use TURN relay candidates (env: P2PCHAT_FORCE_RELAY)")
	chatCmd.Flags().StringVar(&flagTheme, "theme", "", "Color theme: dark or light (saved for next time)")
}

func runChat(parent context.Context, input string) error {
	cfg, err := config.Load(config.Options{
		RelayURL:      flagRelayURL,
		CredentialURL: flagCredentialURL,
		STUNServers:   flagSTUN,
		ForceRelay:    flagForceRelay,
		Verbose:       flagVerbose,
	})
	if err != nil {
		return err
	}

	if !cfg.ForceRelay && cfg.CredentialURL != "" && utils.ShouldForceRelay() {
		slog.Info("VPN or CGNAT interface detected, forcing relay")
		cfg.ForceRelay = true
	}

	room := identity.NewRoomID()
	if input != "" {
		if room, err = config.ParseRoomInput(input); err != nil {
			return err
		}
	} else {
		fmt.Println(ui.NewRoomInfo(room, cfg.RoomLink(room)).View())
	}

	themes := loadTheme()

	// The TUI owns the terminal; logs go to --log-file or nowhere.
	if flagLogFile == "" {
		logging.Init(logging.Options{Level: flagLogLevel, Verbose: flagVerbose, Output: io.Discard})
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	sess, err := session.New(ctx, session.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer sess.Close()

	model := ui.NewChatModel(ui.ChatOptions{
		Session:     sess,
		DisplayName: sess.Self().DisplayName,
		Room:        room,
		RoomLink:    cfg.RoomLink,
		Themes:      themes,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat ui: %w", err)
	}
	return nil
}

// loadTheme applies --theme or the saved preference. A nil store means
// toggles are not persisted.
func loadTheme() *ui.ThemeStore {
	store, err := ui.DefaultThemeStore()
	if err != nil {
		slog.Warn("theme preference unavailable", "error", err)
	}

	theme := ui.ThemeDark
	if store != nil {
		theme = store.Load()
	}
	if flagTheme != "" {
		t, ok := ui.ParseTheme(flagTheme)
		if !ok {
			ui.PrintWarningf("unknown theme %q, using %s", flagTheme, theme)
		} else {
			theme = t
			if store != nil {
				if err := store.Save(t); err != nil {
					slog.Warn("save theme", "error", err)
				}
			}
		}
	}
	ui.ApplyTheme(theme)
	return store
}
