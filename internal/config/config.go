package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration of the sightline server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Capture CaptureConfig `yaml:"capture"`
	Monitor MonitorConfig `yaml:"monitor"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// AuthPasswordHash is an optional bcrypt hash. When set, mutating endpoints
	// require HTTP Basic auth with the matching password.
	AuthPasswordHash string `yaml:"auth_password_hash"`
}

type StorageConfig struct {
	// Root holds sightline.db and the screenshots/ tree. "~" is expanded.
	Root string `yaml:"root"`
}

type CaptureConfig struct {
	// Backend names a registered capture backend ("chromedp").
	Backend   string        `yaml:"backend"`
	Headless  bool          `yaml:"headless"`
	Timeout   time.Duration `yaml:"timeout"`
	IdleAfter time.Duration `yaml:"idle_after"`
	UserAgent string        `yaml:"user_agent"`
}

type MonitorConfig struct {
	// ChangeThreshold is the MSE above which a capture counts as a visual change.
	ChangeThreshold float64 `yaml:"change_threshold"`

	// RecentImages is how many captures each dashboard row shows.
	RecentImages int `yaml:"recent_images"`

	// CaptureRetention bounds non-significant captures after each run.
	CaptureRetention time.Duration `yaml:"capture_retention"`

	// ScreenshotRetention and ChangeRetention bound the periodic sweep.
	ScreenshotRetention time.Duration `yaml:"screenshot_retention"`
	ChangeRetention     time.Duration `yaml:"change_retention"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`

	// MaxConcurrentCaptures limits simultaneous browser captures.
	MaxConcurrentCaptures int `yaml:"max_concurrent_captures"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config populated with the stock defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":5000",
		},
		Storage: StorageConfig{
			Root: "~/.local/share/sightline",
		},
		Capture: CaptureConfig{
			Backend:   "chromedp",
			Headless:  true,
			Timeout:   60 * time.Second,
			IdleAfter: 2 * time.Second,
		},
		Monitor: MonitorConfig{
			ChangeThreshold:       50,
			RecentImages:          6,
			CaptureRetention:      1440 * time.Minute,
			ScreenshotRetention:   4 * time.Hour,
			ChangeRetention:       7 * 24 * time.Hour,
			SweepInterval:         time.Hour,
			MaxConcurrentCaptures: 2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a Config from defaults, then the YAML file at path (if path is
// non-empty), then SIGHTLINE_* environment variables. A .env file in the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	root, err := ExpandPath(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("expanding storage root: %w", err)
	}
	cfg.Storage.Root = root

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SIGHTLINE_* environment variables.
func (c *Config) ApplyEnv() {
	c.Server.ListenAddr = getEnvOrDefault("SIGHTLINE_LISTEN_ADDR", c.Server.ListenAddr)
	c.Server.AuthPasswordHash = getEnvOrDefault("SIGHTLINE_AUTH_PASSWORD_HASH", c.Server.AuthPasswordHash)
	c.Storage.Root = getEnvOrDefault("SIGHTLINE_STORAGE_ROOT", c.Storage.Root)
	c.Capture.Backend = getEnvOrDefault("SIGHTLINE_CAPTURE_BACKEND", c.Capture.Backend)
	c.Capture.Headless = getEnvAsBool("SIGHTLINE_HEADLESS", c.Capture.Headless)
	c.Capture.Timeout = getEnvAsDuration("SIGHTLINE_CAPTURE_TIMEOUT", c.Capture.Timeout)
	c.Monitor.ChangeThreshold = getEnvAsFloat("SIGHTLINE_CHANGE_THRESHOLD", c.Monitor.ChangeThreshold)
	c.Monitor.MaxConcurrentCaptures = getEnvAsInt("SIGHTLINE_MAX_CONCURRENT_CAPTURES", c.Monitor.MaxConcurrentCaptures)
	c.Log.Level = getEnvOrDefault("SIGHTLINE_LOG_LEVEL", c.Log.Level)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if strings.TrimSpace(c.Storage.Root) == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Capture.Timeout <= 0 {
		return fmt.Errorf("capture.timeout must be positive, got %s", c.Capture.Timeout)
	}
	if c.Monitor.ChangeThreshold < 0 {
		return fmt.Errorf("monitor.change_threshold must not be negative, got %v", c.Monitor.ChangeThreshold)
	}
	if c.Monitor.RecentImages <= 0 {
		return fmt.Errorf("monitor.recent_images must be positive, got %d", c.Monitor.RecentImages)
	}
	if c.Monitor.MaxConcurrentCaptures <= 0 {
		return fmt.Errorf("monitor.max_concurrent_captures must be positive, got %d", c.Monitor.MaxConcurrentCaptures)
	}
	if c.Monitor.SweepInterval <= 0 {
		return fmt.Errorf("monitor.sweep_interval must be positive, got %s", c.Monitor.SweepInterval)
	}
	return nil
}

// DatabasePath is the SQLite file under the storage root.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.Root, "sightline.db")
}

// ScreenshotDir is the screenshot tree under the storage root.
func (c *Config) ScreenshotDir() string {
	return filepath.Join(c.Storage.Root, "screenshots")
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}
