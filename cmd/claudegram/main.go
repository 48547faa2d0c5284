package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ent0n29/claudegram/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "claudegram",
	Short: "Telegram relay for Claude and OpenAI chat models",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(os.Stderr)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	},
}

// setupLogging derives the global log level from config. A config error is
// noted and logging starts at info; the command's own Load reports the full
// failure afterwards.
func setupLogging(errOut io.Writer) zerolog.Level {
	level := zerolog.InfoLevel
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(errOut, "config: %v; logging at info\n", err)
	} else if parsed, parseErr := zerolog.ParseLevel(cfg.LogLevel); parseErr == nil {
		level = parsed
	}
	zerolog.SetGlobalLevel(level)
	return level
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newPollCmd(), newWebhookCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
