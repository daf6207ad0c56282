package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "Nova" {
		t.Errorf("expected Name=Nova, got %s", cfg.Name)
	}
	if cfg.Daemon.SocketPath != "/tmp/nova_socket" {
		t.Errorf("expected SocketPath=/tmp/nova_socket, got %s", cfg.Daemon.SocketPath)
	}
	if cfg.Bridge.Sender != "nova" {
		t.Errorf("expected Sender=nova, got %s", cfg.Bridge.Sender)
	}
	if got := cfg.GetHeartbeatInterval(); got != 180*time.Second {
		t.Errorf("expected heartbeat interval 180s, got %s", got)
	}
	if got := cfg.GetEvolutionInterval(); got != 600*time.Second {
		t.Errorf("expected evolution interval 600s, got %s", got)
	}
	if got := cfg.GetPollInterval(); got != 10*time.Second {
		t.Errorf("expected poll interval 10s, got %s", got)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Daemon.SocketPath = filepath.Join(tmpDir, "nova.sock")
	cfg.Bridge.PollInterval = "2s"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Daemon.SocketPath != cfg.Daemon.SocketPath {
		t.Errorf("expected SocketPath=%s, got %s", cfg.Daemon.SocketPath, loaded.Daemon.SocketPath)
	}
	if got := loaded.GetPollInterval(); got != 2*time.Second {
		t.Errorf("expected poll interval 2s, got %s", got)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "Nova" {
		t.Errorf("expected defaults for missing file, got Name=%s", cfg.Name)
	}
}

func TestConfig_DerivedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Daemon.DataRoot = "/var/lib/nova"

	if got := cfg.DatabasePath(); got != "/var/lib/nova/nova_memory.db" {
		t.Errorf("unexpected database path: %s", got)
	}
	if got := cfg.BridgeRoot(); got != "/var/lib/nova/bridge" {
		t.Errorf("unexpected bridge root: %s", got)
	}
	if got := cfg.LogsDir(); got != "/var/lib/nova/logs" {
		t.Errorf("unexpected logs dir: %s", got)
	}

	cfg.Memory.DatabasePath = "/elsewhere/mind.db"
	if got := cfg.DatabasePath(); got != "/elsewhere/mind.db" {
		t.Errorf("explicit database path not honored: %s", got)
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bridge.PollInterval = "not-a-duration"
	cfg.Consciousness.HeartbeatInterval = ""

	if got := cfg.GetPollInterval(); got != 10*time.Second {
		t.Errorf("expected fallback 10s for bad poll interval, got %s", got)
	}
	if got := cfg.GetHeartbeatInterval(); got != 180*time.Second {
		t.Errorf("expected fallback 180s for empty heartbeat interval, got %s", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	cfg.Daemon.SocketPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty socket path")
	}

	cfg = DefaultConfig()
	cfg.Bridge.PollInterval = "-3s"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative poll interval")
	}

	cfg = DefaultConfig()
	cfg.Daemon.MaxRequestBytes = 128
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for tiny max_request_bytes")
	}
}

func TestValidPriority(t *testing.T) {
	for _, p := range []string{"low", "medium", "high"} {
		if !ValidPriority(p) {
			t.Errorf("expected %q to be a valid priority", p)
		}
	}
	if ValidPriority("urgent") {
		t.Error("urgent should not be a valid priority")
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret(""); got != "" {
		t.Errorf("empty secret should stay empty, got %q", got)
	}
	if got := MaskSecret("short"); got != "****" {
		t.Errorf("short secret should be starred, got %q", got)
	}
	masked := MaskSecret("AIzaSyExample12345")
	if strings.Contains(masked, "Example") {
		t.Errorf("masked secret leaks content: %q", masked)
	}
	if !strings.HasPrefix(masked, "AI") {
		t.Errorf("masked secret should keep a short prefix, got %q", masked)
	}
}
