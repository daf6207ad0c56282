package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nova/internal/config"
	"nova/internal/correspondent"
	"nova/internal/logging"
)

var (
	correspondOnce     bool
	correspondInterval time.Duration
)

// correspondCmd runs the external correspondent loop
var correspondCmd = &cobra.Command{
	Use:   "correspond",
	Short: "Run the external correspondent",
	Long: `Runs the other side of the bridge: watches the outbox, answers each
message through Gemini, and deposits replies in the inbox for the daemon
to ingest on its next poll.

Requires GEMINI_API_KEY (or llm.api_key in the config file). Runs until
interrupted unless --once is given.`,
	RunE: runCorrespond,
}

func init() {
	correspondCmd.Flags().BoolVar(&correspondOnce, "once", false, "Process the current outbox and exit")
	correspondCmd.Flags().DurationVar(&correspondInterval, "interval", correspondent.DefaultInterval, "Outbox scan interval")
}

func runCorrespond(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if err := logging.Initialize(cfg.ExpandedDataRoot()); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	}
	defer logging.CloseAll()

	gen, err := correspondent.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.GetLLMTimeout())
	if err != nil {
		return err
	}
	defer gen.Close()

	logger.Info("Correspondent starting",
		zap.String("bridge", cfg.BridgeRoot()),
		zap.String("model", gen.Name()))
	logger.Debug("Resolved API key", zap.String("key", config.MaskSecret(cfg.LLM.APIKey)))

	c, err := correspondent.New(cfg.BridgeRoot(), gen)
	if err != nil {
		return err
	}

	if correspondOnce {
		stats, err := c.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Answered %d of %d message(s)\n", stats.Answered, stats.Scanned)
		if stats.Malformed > 0 || stats.Failed > 0 {
			fmt.Printf("Set aside %d malformed, %d failed (will retry)\n", stats.Malformed, stats.Failed)
		}
		return nil
	}

	fmt.Printf("Correspondent watching %s every %s. Press Ctrl+C to stop\n", cfg.BridgeRoot(), correspondInterval)
	return c.Run(ctx, correspondInterval)
}
