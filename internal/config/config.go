package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/NeverVane/shellhistory/internal/logger"
)

// Save styles accepted in [history].save_style
const (
	SaveStyleIncremental = "incremental"
	SaveStyleAtExit      = "at_exit"
	SaveStyleNothing     = "nothing"
)

// Config represents the complete configuration for shist
type Config struct {
	History HistoryConfig `toml:"history"`
	Logging logger.Config `toml:"logging"`
	Sentry  SentryConfig  `toml:"sentry"`
	Output  OutputConfig  `toml:"output"`

	// Directory paths (computed, not stored in TOML)
	DataDir   string `toml:"-"`
	ConfigDir string `toml:"-"`
}

// HistoryConfig contains the settings read by the history core
type HistoryConfig struct {
	// Maximum number of entries kept in memory
	MaxCount int `toml:"max_count"`

	// Drop a line identical to the most recent entry
	NoDuplicates bool `toml:"no_duplicates"`

	// incremental, at_exit or nothing
	SaveStyle string `toml:"save_style"`

	// Shared history file. A leading ~ is expanded.
	SavePath string `toml:"save_path"`

	// Bounded wait for the cross-process history lock
	LockTimeoutMS int `toml:"lock_timeout_ms"`
}

// SentryConfig contains Sentry error monitoring settings
type SentryConfig struct {
	Enabled     bool    `toml:"enabled"`
	DSN         string  `toml:"dsn"`
	Environment string  `toml:"environment"`
	SampleRate  float64 `toml:"sample_rate"`
	Debug       bool    `toml:"debug"`
}

// OutputConfig contains terminal output settings
type OutputConfig struct {
	ColorsEnabled bool `toml:"colors_enabled"`

	// Automatically disable colors when not in a TTY
	AutoDetectTTY bool `toml:"auto_detect_tty"`

	// Color used for history file error reports
	ErrorColor string `toml:"error_color"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".config", "shellhistory")
	dataDir := filepath.Join(homeDir, ".local", "share", "shellhistory")

	return &Config{
		History: HistoryConfig{
			MaxCount:      4096,
			NoDuplicates:  true,
			SaveStyle:     SaveStyleIncremental,
			SavePath:      filepath.Join(dataDir, "history.txt"),
			LockTimeoutMS: 100,
		},
		Logging: *logger.DefaultConfig(),
		Sentry: SentryConfig{
			Enabled:     false,
			Environment: "production",
			SampleRate:  1.0,
		},
		Output: OutputConfig{
			ColorsEnabled: true,
			AutoDetectTTY: true,
			ErrorColor:    "#FF0000",
		},
		DataDir:   dataDir,
		ConfigDir: configDir,
	}
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		configPath = filepath.Join(config.ConfigDir, "config.toml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config.ApplyDefaults()
		return config, nil
	}

	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.GetLogger().Config().Debug().
		Str("path", configPath).
		Str("save_style", config.History.SaveStyle).
		Msg("Configuration loaded")

	return config, nil
}

// Save saves the configuration to the specified file path
func (c *Config) Save(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config as TOML: %w", err)
	}

	return nil
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	if c.History.MaxCount <= 0 {
		return fmt.Errorf("history.max_count must be positive")
	}
	if c.History.LockTimeoutMS <= 0 {
		return fmt.Errorf("history.lock_timeout_ms must be positive")
	}
	if c.History.SavePath == "" {
		return fmt.Errorf("history.save_path is required")
	}

	validStyles := map[string]bool{
		SaveStyleIncremental: true,
		SaveStyleAtExit:      true,
		SaveStyleNothing:     true,
	}
	if !validStyles[c.History.SaveStyle] {
		return fmt.Errorf("history.save_style must be one of: incremental, at_exit, nothing")
	}

	if c.Sentry.SampleRate < 0 || c.Sentry.SampleRate > 1 {
		return fmt.Errorf("sentry.sample_rate must be between 0.0 and 1.0")
	}

	return nil
}

// ApplyDefaults fills in values TOML decoding left at zero
func (c *Config) ApplyDefaults() {
	if c.History.MaxCount <= 0 {
		c.History.MaxCount = 4096
	}
	if c.History.SaveStyle == "" {
		c.History.SaveStyle = SaveStyleIncremental
	}
	c.History.SaveStyle = strings.ToLower(c.History.SaveStyle)
	if c.History.SavePath == "" {
		c.History.SavePath = filepath.Join(c.DataDir, "history.txt")
	}
	if c.History.LockTimeoutMS <= 0 {
		c.History.LockTimeoutMS = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "error"
	}
	if c.Output.ErrorColor == "" {
		c.Output.ErrorColor = "#FF0000"
	}
}

// SetDataDir relocates the data directory and the history file inside it
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	c.ConfigDir = dataDir
	c.History.SavePath = filepath.Join(dataDir, "history.txt")
}

// GetLockTimeout returns the history lock timeout as a time.Duration
func (c *Config) GetLockTimeout() time.Duration {
	return time.Duration(c.History.LockTimeoutMS) * time.Millisecond
}

// GetSavePath returns the history file path with ~ expanded
func (c *Config) GetSavePath() string {
	path := c.History.SavePath
	if path == "~" || strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
