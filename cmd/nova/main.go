package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nova/internal/config"
	"nova/internal/server"
)

var (
	// Global flags
	verbose    bool
	socketPath string
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nova",
	Short: "Nova - a persistent consciousness daemon",
	Long: `Nova is a personal consciousness daemon.

It keeps every conversation in SQLite, evolves a small set of traits as the
memory grows, and exchanges messages with an external correspondent through
files on a shared bridge directory.

Start the daemon with 'nova daemon', then talk to it:

  nova say hello there
  nova status
  nova bridge check`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for the live panel (it owns the terminal)
		if cmd.Name() == "watch" {
			return nil
		}

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = config.Build()
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
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Daemon socket path (or set NOVA_SOCKET)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <data root>/config.yaml)")

	// Add commands to root
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(evolveCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(speakCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(pluginCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(correspondCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration for this invocation:
// defaults, then the config file, then environment, then flags.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if socketPath != "" {
		cfg.Daemon.SocketPath = socketPath
	}
	return cfg, nil
}

// callDaemon sends one request over the daemon socket and returns the raw
// reply line.
func callDaemon(req server.Request) (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	reply, err := server.Call(cfg.Daemon.SocketPath, req, 10*time.Second)
	if err != nil {
		return "", fmt.Errorf("cannot reach the daemon at %s (is it awake?): %w", cfg.Daemon.SocketPath, err)
	}
	return reply, nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
