package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "0.3.0"

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger. logLevel is shared with the config reload callback so the
	// level can change at runtime.
	logger   *zap.Logger
	logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// rootCmd runs the relay with the local console front end.
var rootCmd = &cobra.Command{
	Use:   "relaybot",
	Short: "relaybot - AI completion relay for chat platforms",
	Long: `relaybot relays conversational turns to a hosted AI completion service
and returns formatted replies, bounding outbound concurrency, retrying
transient failures, and keeping short-lived per-conversation context.

Platform gateways adapt their events to the internal gateway contract; run
without arguments to talk to the relay on the local console.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logLevel.SetLevel(zapcore.DebugLevel)
		}
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = logLevel
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runConsole,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the relaybot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("relaybot %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "relaybot.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
