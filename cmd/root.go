package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/abdulmanan69/p2pchat/internal/logging"
	"github.com/abdulmanan69/p2pchat/internal/ui"
	"github.com/abdulmanan69/p2pchat/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagVerbose  bool
	flagLogLevel string
	flagLogFile  string
)

// logFile is open while a command runs with --log-file.
var logFile *os.File

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "p2pchat",
	Short: "Peer-to-peer group chat over WebRTC data channels",
	Long: `p2pchat connects everyone in a room directly over WebRTC data channels.
A small relay carries only the signaling records needed to set up each
connection; chat messages never touch it.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var out io.Writer
		if flagLogFile != "" {
			f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			logFile = f
			out = f
		}
		logging.Init(logging.Options{
			Level:   flagLogLevel,
			Verbose: flagVerbose,
			Output:  out,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(chatCmd, relayCmd, probeCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
