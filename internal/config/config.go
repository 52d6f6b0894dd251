package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Polling controls how often pipelines are refreshed.
type Polling struct {
	IntervalSeconds    int `toml:"interval_seconds"`
	MinIntervalSeconds int `toml:"min_interval_seconds"`
	JitterSeconds      int `toml:"jitter_seconds"`
	RequestTimeout     int `toml:"request_timeout"`
}

// Notifications contains alert preferences and ntfy delivery settings.
type Notifications struct {
	Enabled        bool   `toml:"enabled"`
	Start          bool   `toml:"start"`
	Completion     bool   `toml:"completion"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	CallbackURL    string `toml:"callback_url"`
}

// GitHub holds credentials shared by GitHub Actions pipelines.
type GitHub struct {
	APIURL string `toml:"api_url"`
	Token  string `toml:"token"`
}

// Display contains CLI presentation preferences.
type Display struct {
	StatusColor bool `toml:"status_color"`
}

// Redis configures the optional change publisher.
type Redis struct {
	URL     string `toml:"url"`
	Channel string `toml:"channel"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Pipeline is a pipeline declared in the configuration file.
type Pipeline struct {
	Name    string `toml:"name"`
	Kind    string `toml:"kind"`
	URL     string `toml:"url"`
	Project string `toml:"project"`
	User    string `toml:"user"`
	Token   string `toml:"token"`
}

// Config encapsulates all configuration values for buildwatch.
//
// Configuration sections by subsystem:
//   - Paths: state/log directories and API bind address
//   - Polling: refresh interval, floor, jitter, and fetch timeout
//   - Notifications: alert preferences and ntfy delivery
//   - GitHub: default API endpoint and token for Actions pipelines
//   - Display: CLI colouring
//   - Redis: optional change fan-out
//   - Logging: log format and level
//   - Pipelines: seed pipelines imported on first start
type Config struct {
	Paths         Paths         `toml:"paths"`
	Polling       Polling       `toml:"polling"`
	Notifications Notifications `toml:"notifications"`
	GitHub        GitHub        `toml:"github"`
	Display       Display       `toml:"display"`
	Redis         Redis         `toml:"redis"`
	Logging       Logging       `toml:"logging"`
	Pipelines     []Pipeline    `toml:"pipelines"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("buildwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file holding the pipeline set.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "buildwatch.db")
}

// SocketPath returns the Unix socket the daemon serves IPC on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "buildwatch.sock")
}

// LockPath returns the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "buildwatch.lock")
}

// PIDPath returns the file the running daemon records its pid in.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "buildwatch.pid")
}

// PollInterval returns the configured refresh interval, never below the floor.
func (c *Config) PollInterval() time.Duration {
	interval := max(c.Polling.IntervalSeconds, c.Polling.MinIntervalSeconds)
	return time.Duration(interval) * time.Second
}

// MinPollInterval returns the global refresh floor.
func (c *Config) MinPollInterval() time.Duration {
	return time.Duration(c.Polling.MinIntervalSeconds) * time.Second
}

// PollJitter returns the upper bound of the per-server schedule offset.
func (c *Config) PollJitter() time.Duration {
	return time.Duration(c.Polling.JitterSeconds) * time.Second
}

// FetchTimeout bounds a single status fetch.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Polling.RequestTimeout) * time.Second
}

// NotifyTimeout bounds a single alert delivery.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
