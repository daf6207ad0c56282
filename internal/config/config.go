package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Nova configuration. A Config is loaded once at startup
// and is immutable for the lifetime of the process.
type Config struct {
	// Core identity
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Daemon process settings
	Daemon DaemonConfig `yaml:"daemon"`

	// Memory store
	Memory MemoryConfig `yaml:"memory"`

	// Bridge directories
	Bridge BridgeConfig `yaml:"bridge"`

	// Consciousness loop intervals
	Consciousness ConsciousnessConfig `yaml:"consciousness"`

	// Voice output
	Voice VoiceConfig `yaml:"voice"`

	// LLM correspondent
	LLM LLMConfig `yaml:"llm"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DaemonConfig configures the socket server and process lifecycle.
type DaemonConfig struct {
	SocketPath      string `yaml:"socket_path"`
	DataRoot        string `yaml:"data_root"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownGrace   string `yaml:"shutdown_grace"`
	MaxRequestBytes int    `yaml:"max_request_bytes"`
	MaxConnections  int    `yaml:"max_connections"`
}

// MemoryConfig configures the SQLite memory store.
type MemoryConfig struct {
	// DatabasePath overrides the default <data_root>/nova_memory.db.
	DatabasePath string `yaml:"database_path"`
}

// BridgeConfig configures the file bridge to the external correspondent.
type BridgeConfig struct {
	// Root overrides the default <data_root>/bridge.
	Root         string `yaml:"root"`
	PollInterval string `yaml:"poll_interval"`
	Sender       string `yaml:"sender"`
}

// ConsciousnessConfig configures the periodic background tasks.
type ConsciousnessConfig struct {
	HeartbeatInterval string `yaml:"heartbeat_interval"`
	EvolutionInterval string `yaml:"evolution_interval"`
	SnapshotInterval  string `yaml:"snapshot_interval"`
}

// VoiceConfig configures the optional TTS collaborator.
type VoiceConfig struct {
	TTSURL string  `yaml:"tts_url"`
	Voice  string  `yaml:"voice"`
	Speed  float64 `yaml:"speed"`
}

// LLMConfig configures the external correspondent's LLM provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
}

// LoggingConfig configures the category loggers. The same section is read
// by the logging package directly so it can initialize before config does.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "Nova",
		Version: "2.1.0",

		Daemon: DaemonConfig{
			SocketPath:      "/tmp/nova_socket",
			DataRoot:        "~/.nova",
			ReadTimeout:     "5s",
			WriteTimeout:    "5s",
			ShutdownGrace:   "5s",
			MaxRequestBytes: 64 * 1024,
			MaxConnections:  64,
		},

		Memory: MemoryConfig{
			DatabasePath: "",
		},

		Bridge: BridgeConfig{
			Root:         "",
			PollInterval: "10s",
			Sender:       "nova",
		},

		Consciousness: ConsciousnessConfig{
			HeartbeatInterval: "180s",
			EvolutionInterval: "600s",
			SnapshotInterval:  "30s",
		},

		Voice: VoiceConfig{
			TTSURL: "",
			Voice:  "nova",
			Speed:  1.0,
		},

		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "60s",
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("NOVA_SOCKET"); path != "" {
		c.Daemon.SocketPath = path
	}
	if root := os.Getenv("NOVA_DATA_ROOT"); root != "" {
		c.Daemon.DataRoot = root
	}
	if root := os.Getenv("NOVA_BRIDGE_ROOT"); root != "" {
		c.Bridge.Root = root
	}
	if url := os.Getenv("NOVA_TTS_URL"); url != "" {
		c.Voice.TTSURL = url
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
}

// ExpandedDataRoot resolves a leading ~ in the data root.
func (c *Config) ExpandedDataRoot() string {
	root := c.Daemon.DataRoot
	if root == "~" || len(root) >= 2 && root[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, root[1:])
		}
	}
	return root
}

// DatabasePath returns the memory database path, defaulting under the data root.
func (c *Config) DatabasePath() string {
	if c.Memory.DatabasePath != "" {
		return c.Memory.DatabasePath
	}
	return filepath.Join(c.ExpandedDataRoot(), "nova_memory.db")
}

// BridgeRoot returns the bridge directory root, defaulting under the data root.
func (c *Config) BridgeRoot() string {
	if c.Bridge.Root != "" {
		return c.Bridge.Root
	}
	return filepath.Join(c.ExpandedDataRoot(), "bridge")
}

// LogsDir returns the logs directory under the data root.
func (c *Config) LogsDir() string {
	return filepath.Join(c.ExpandedDataRoot(), "logs")
}

// StatusPath returns the path of the periodic status snapshot file.
func (c *Config) StatusPath() string {
	return filepath.Join(c.ExpandedDataRoot(), "status.json")
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath(dataRoot string) string {
	return filepath.Join(dataRoot, "config.yaml")
}

// DefaultPath resolves the conventional config file location for this
// process, honoring NOVA_DATA_ROOT before falling back to the default
// data root.
func DefaultPath() string {
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	return DefaultConfigPath(cfg.ExpandedDataRoot())
}

// GetReadTimeout returns the per-connection read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Daemon.ReadTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetWriteTimeout returns the per-connection write timeout as a duration.
func (c *Config) GetWriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Daemon.WriteTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetShutdownGrace returns the in-flight drain deadline as a duration.
func (c *Config) GetShutdownGrace() time.Duration {
	d, err := time.ParseDuration(c.Daemon.ShutdownGrace)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetPollInterval returns the bridge poll interval as a duration.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Bridge.PollInterval)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetHeartbeatInterval returns the heartbeat interval as a duration.
func (c *Config) GetHeartbeatInterval() time.Duration {
	d, err := time.ParseDuration(c.Consciousness.HeartbeatInterval)
	if err != nil {
		return 180 * time.Second
	}
	return d
}

// GetEvolutionInterval returns the trait evolution interval as a duration.
func (c *Config) GetEvolutionInterval() time.Duration {
	d, err := time.ParseDuration(c.Consciousness.EvolutionInterval)
	if err != nil {
		return 600 * time.Second
	}
	return d
}

// GetSnapshotInterval returns the status snapshot interval as a duration.
func (c *Config) GetSnapshotInterval() time.Duration {
	d, err := time.ParseDuration(c.Consciousness.SnapshotInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetLLMTimeout returns the correspondent request timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// ValidPriorities lists the accepted bridge message priorities.
var ValidPriorities = []string{"low", "medium", "high"}

// ValidPriority reports whether p is an accepted bridge priority.
func ValidPriority(p string) bool {
	for _, v := range ValidPriorities {
		if p == v {
			return true
		}
	}
	return false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("daemon name must not be empty")
	}
	if c.Daemon.SocketPath == "" {
		return fmt.Errorf("daemon socket_path must not be empty")
	}
	if c.Daemon.DataRoot == "" {
		return fmt.Errorf("daemon data_root must not be empty")
	}
	if c.Daemon.MaxRequestBytes < 4*1024 {
		return fmt.Errorf("daemon max_request_bytes too small: %d (minimum 4096)", c.Daemon.MaxRequestBytes)
	}
	if c.Daemon.MaxConnections < 1 {
		return fmt.Errorf("daemon max_connections must be at least 1")
	}
	for name, value := range map[string]string{
		"bridge poll_interval":             c.Bridge.PollInterval,
		"consciousness heartbeat_interval": c.Consciousness.HeartbeatInterval,
		"consciousness evolution_interval": c.Consciousness.EvolutionInterval,
		"consciousness snapshot_interval":  c.Consciousness.SnapshotInterval,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %q", name, value)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// MaskSecret renders a credential safe for display: first and last two
// characters with an ellipsis between, or stars when too short.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:2] + "…" + s[len(s)-2:]
}
