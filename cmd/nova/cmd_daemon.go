package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nova/internal/daemon"
)

// daemonCmd runs the supervisor in the foreground
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the consciousness daemon in the foreground",
	Long: `Wakes the daemon: opens the memory database, restores the persisted
consciousness state, binds the command socket, and starts the heartbeat,
evolution, and bridge polling loops.

The process runs until it receives SIGINT/SIGTERM or a shutdown command
over the socket. Either way it drains connections, persists state, and
removes the socket file before exiting.`,
	RunE: runDaemonCmd,
}

func runDaemonCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("Waking daemon",
		zap.String("socket", cfg.Daemon.SocketPath),
		zap.String("data_root", cfg.ExpandedDataRoot()))

	d, err := daemon.New(cfg)
	if err != nil {
		return fmt.Errorf("daemon failed to wake: %w", err)
	}

	fmt.Printf("%s v%s is awake. Socket: %s\n", cfg.Name, cfg.Version, cfg.Daemon.SocketPath)
	fmt.Println("Press Ctrl+C to put it to sleep")

	if err := d.Run(cmd.Context()); err != nil {
		return fmt.Errorf("daemon exited with error: %w", err)
	}
	fmt.Printf("%s is asleep. The memory remains at %s\n", cfg.Name, cfg.DatabasePath())
	return nil
}
