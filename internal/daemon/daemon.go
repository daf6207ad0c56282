// Package daemon wires the whole of Nova together: configuration,
// logging, the memory store, the bridge, the dispatcher, the socket
// server and the periodic tasks, plus signal handling. The cmd layer
// only constructs a Daemon and runs it.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"nova/internal/articulation"
	"nova/internal/bridge"
	"nova/internal/config"
	"nova/internal/consciousness"
	"nova/internal/logging"
	"nova/internal/plugins"
	"nova/internal/scheduler"
	"nova/internal/server"
	"nova/internal/speech"
	"nova/internal/store"
)

// Daemon owns every long-lived component.
type Daemon struct {
	cfg        *config.Config
	store      *store.MemoryStore
	bridge     *bridge.Bridge
	snapshot   *consciousness.Snapshot
	dispatcher *server.Dispatcher
	server     *server.Server
	sched      *scheduler.Scheduler
	watcher    *bridge.InboxWatcher
}

// New builds a daemon from validated configuration, in dependency order:
// directories, logging, store, consciousness state, bridge, speech,
// plugins, dispatcher, server, scheduler. Any failure here is fatal; the
// caller exits non-zero.
func New(cfg *config.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dataRoot := cfg.ExpandedDataRoot()
	if err := os.MkdirAll(dataRoot, 0755); err != nil {
		return nil, fmt.Errorf("cannot create data root %s: %w", dataRoot, err)
	}
	if err := logging.Initialize(dataRoot); err != nil {
		return nil, fmt.Errorf("cannot initialize logging: %w", err)
	}
	logging.Boot("=== %s v%s waking up ===", cfg.Name, cfg.Version)
	logging.Boot("Data root: %s", dataRoot)

	st, err := store.NewMemoryStore(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("cannot open memory store: %w", err)
	}

	state, found, err := st.LoadConsciousnessState()
	if err != nil {
		logging.StoreError("Consciousness state unreadable, starting from defaults: %v", err)
		found = false
	}
	if !found {
		state = consciousness.State{Traits: consciousness.DefaultTraits()}
		logging.Boot("Fresh consciousness state (defaults)")
	} else {
		logging.Boot("Restored consciousness state: awakenings=%d mystical=%.2f", state.AwakeningCount, state.MysticalAwareness)
	}
	snapshot := consciousness.NewSnapshot(state)

	br, err := bridge.New(cfg.BridgeRoot(), cfg.Bridge.Sender, st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("cannot set up bridge: %w", err)
	}

	var speaker *speech.Speaker
	if cfg.Voice.TTSURL != "" {
		speaker = speech.New(cfg.Voice.TTSURL, cfg.Voice.Voice, cfg.Voice.Speed)
		logging.Boot("Voice endpoint: %s (voice %s)", cfg.Voice.TTSURL, cfg.Voice.Voice)
	}

	registry := plugins.Default(br)

	dispatcher := server.NewDispatcher(server.Deps{
		Name:      cfg.Name,
		Store:     st,
		Responder: articulation.NewResponder(),
		Snapshot:  snapshot,
		Bridge:    br,
		Speaker:   speaker,
		Plugins:   registry,
	})

	srv := server.NewServer(server.Options{
		SocketPath:      cfg.Daemon.SocketPath,
		ReadTimeout:     cfg.GetReadTimeout(),
		WriteTimeout:    cfg.GetWriteTimeout(),
		ShutdownGrace:   cfg.GetShutdownGrace(),
		MaxRequestBytes: cfg.Daemon.MaxRequestBytes,
		MaxConnections:  cfg.Daemon.MaxConnections,
	}, dispatcher)

	d := &Daemon{
		cfg:        cfg,
		store:      st,
		bridge:     br,
		snapshot:   snapshot,
		dispatcher: dispatcher,
		server:     srv,
	}

	d.sched = scheduler.New(
		scheduler.Task{
			Name:     "heartbeat",
			Interval: cfg.GetHeartbeatInterval(),
			Run: func(ctx context.Context) error {
				dispatcher.RecordHeartbeat()
				return nil
			},
		},
		scheduler.Task{
			Name:     "evolution",
			Interval: cfg.GetEvolutionInterval(),
			Run: func(ctx context.Context) error {
				_, err := dispatcher.RunEvolution()
				return err
			},
		},
		scheduler.Task{
			Name:     "bridge-poll",
			Interval: cfg.GetPollInterval(),
			Run: func(ctx context.Context) error {
				stats, err := br.Poll(ctx)
				if err != nil {
					return err
				}
				if stats.Scanned == 0 {
					return scheduler.ErrSkip
				}
				return nil
			},
		},
		scheduler.Task{
			Name:     "status-snapshot",
			Interval: cfg.GetSnapshotInterval(),
			Run:      d.writeStatusSnapshot,
		},
	)

	// The watcher accelerates inbox pickup between poll ticks. Losing it
	// is not fatal; the periodic poll remains the contract.
	watcher, err := bridge.NewInboxWatcher(br, func() {
		if _, err := br.Poll(context.Background()); err != nil {
			logging.BridgeWarn("Accelerated poll failed: %v", err)
		}
	})
	if err != nil {
		logging.BridgeWarn("Inbox watcher unavailable: %v", err)
	} else {
		d.watcher = watcher
	}

	return d, nil
}

// Run serves until a SIGINT/SIGTERM or a shutdown command arrives, then
// tears down in order: socket server, watcher, scheduler, store. Returns
// nil exactly when shutdown was signal- or command-initiated.
func (d *Daemon) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := d.writeStatusSnapshot(runCtx); err != nil {
		logging.BootDebug("Initial status snapshot failed: %v", err)
	}

	d.sched.Start(runCtx)
	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			logging.BridgeWarn("Inbox watcher failed to start: %v", err)
			d.watcher = nil
		}
	}

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return d.server.Start(gctx)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logging.Boot("Received %s, beginning graceful shutdown", sig)
		case <-d.dispatcher.ShutdownRequested():
			logging.Boot("Shutdown command accepted, beginning graceful shutdown")
		case <-gctx.Done():
			// The server failed on its own; fall through to teardown.
		}
		d.server.Stop()
		return nil
	})

	err := g.Wait()

	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.sched.Stop()

	if closeErr := d.store.Close(); closeErr != nil {
		logging.StoreError("Store close failed: %v", closeErr)
	}

	logging.Boot("=== %s asleep ===", d.cfg.Name)
	logging.CloseAll()
	return err
}

// writeStatusSnapshot dumps the live status report to <data root>/status.json
// for file-reading collaborators. Atomic temp+rename; the socket stays
// the canonical interface.
func (d *Daemon) writeStatusSnapshot(ctx context.Context) error {
	status := d.dispatcher.BuildStatus()
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	path := d.cfg.StatusPath()
	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}
