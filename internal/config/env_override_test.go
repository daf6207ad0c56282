package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Daemon(t *testing.T) {
	t.Run("NOVA_SOCKET overrides socket path", func(t *testing.T) {
		t.Setenv("NOVA_SOCKET", "/run/nova/alt.sock")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/run/nova/alt.sock", cfg.Daemon.SocketPath)
	})

	t.Run("NOVA_DATA_ROOT overrides data root and derived paths", func(t *testing.T) {
		t.Setenv("NOVA_DATA_ROOT", "/srv/nova")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/srv/nova", cfg.Daemon.DataRoot)
		assert.Equal(t, filepath.Join("/srv/nova", "nova_memory.db"), cfg.DatabasePath())
		assert.Equal(t, filepath.Join("/srv/nova", "bridge"), cfg.BridgeRoot())
	})

	t.Run("NOVA_BRIDGE_ROOT wins over data root derivation", func(t *testing.T) {
		t.Setenv("NOVA_DATA_ROOT", "/srv/nova")
		t.Setenv("NOVA_BRIDGE_ROOT", "/mnt/shared/bridge")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/mnt/shared/bridge", cfg.BridgeRoot())
	})
}

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("GEMINI_API_KEY sets key and provider", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "test-key")

		cfg := &Config{LLM: LLMConfig{Provider: "none"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "test-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("env key survives a config file load", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "env-key")

		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		seed := DefaultConfig()
		seed.LLM.APIKey = "file-key"
		require.NoError(t, seed.Save(path))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "env-key", cfg.LLM.APIKey)
	})
}
