package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// LocalConfigName is the per-project config file looked up from the working directory
const LocalConfigName = ".process-eta.toml"

// Config holds all application configuration
type Config struct {
	General GeneralConfig `toml:"general"`
	Model   ModelConfig   `toml:"model"`
	Retrain RetrainConfig `toml:"retrain"`
	Web     WebConfig     `toml:"web"`
	Log     LogConfig     `toml:"log"`
}

// GeneralConfig holds storage locations
type GeneralConfig struct {
	DatabasePath string `toml:"database_path"`
	RecordsDir   string `toml:"records_dir"`
}

// ModelConfig holds optional training safeguards. Zero values keep the
// unguarded behaviour.
type ModelConfig struct {
	PivotTolerance float64 `toml:"pivot_tolerance"`
	MinSamples     int     `toml:"min_samples"`
}

// RetrainConfig controls automatic retraining
type RetrainConfig struct {
	Cron          string `toml:"cron"`
	WatchDebounce string `toml:"watch_debounce"`
}

// WebConfig holds HTTP API settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			DatabasePath: filepath.Join(home, ".process-eta", "processes.db"),
			RecordsDir:   filepath.Join(home, ".process-eta", "records"),
		},
		Retrain: RetrainConfig{
			WatchDebounce: "500ms",
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.General.RecordsDir = ExpandPath(cfg.General.RecordsDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadWithLocalFallback loads path if given, otherwise the nearest local
// config file, otherwise the user config
func LoadWithLocalFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}

// FindLocalConfig walks up from the working directory looking for LocalConfigName
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Validate checks field values that TOML decoding cannot
func (c *Config) Validate() error {
	if c.Model.PivotTolerance < 0 {
		return fmt.Errorf("model.pivot_tolerance must be >= 0")
	}
	if c.Model.MinSamples < 0 {
		return fmt.Errorf("model.min_samples must be >= 0")
	}
	if c.Retrain.Cron != "" {
		if _, err := cron.ParseStandard(c.Retrain.Cron); err != nil {
			return fmt.Errorf("retrain.cron: %w", err)
		}
	}
	if _, err := c.Debounce(); err != nil {
		return fmt.Errorf("retrain.watch_debounce: %w", err)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port %d out of range", c.Web.Port)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Debounce returns the watcher debounce interval
func (c *Config) Debounce() (time.Duration, error) {
	if c.Retrain.WatchDebounce == "" {
		return 500 * time.Millisecond, nil
	}
	return time.ParseDuration(c.Retrain.WatchDebounce)
}

// LogLevel parses the configured log level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// Logger builds a text logger writing to w at the configured level
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Save writes the configuration to path, creating parent directories
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "process-eta", "config.toml")
}
