package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mldash",
	Short: "Terminal dashboard for watching a model train",
	Long: `mldash renders a grid of panels (loss curves, metrics, sample images,
predictions, controls) fed by a training loop through a pair of message
queues.

Examples:
  # Train the built-in glyph classifier and watch it
  mldash demo

  # Same, with a custom layout and a recording of every message
  mldash demo --config examples/dashboard.yaml --record run.jsonl

  # Play a recording back
  mldash replay run.jsonl`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	flushLogs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
