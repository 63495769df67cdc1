package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raysh454/sightline/internal/config"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	t.Parallel()
	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Monitor.ChangeThreshold != 50 {
		t.Errorf("expected threshold 50, got %v", cfg.Monitor.ChangeThreshold)
	}
	if cfg.Monitor.CaptureRetention != 24*time.Hour {
		t.Errorf("expected 1440m capture retention, got %s", cfg.Monitor.CaptureRetention)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sightline.yaml")
	yml := `
server:
  listen_addr: ":9090"
storage:
  root: ` + dir + `
monitor:
  change_threshold: 12.5
  screenshot_retention: 90m
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.Server.ListenAddr)
	}
	if cfg.Monitor.ChangeThreshold != 12.5 {
		t.Errorf("expected 12.5, got %v", cfg.Monitor.ChangeThreshold)
	}
	if cfg.Monitor.ScreenshotRetention != 90*time.Minute {
		t.Errorf("expected 90m, got %s", cfg.Monitor.ScreenshotRetention)
	}
	// untouched values keep their defaults
	if cfg.Monitor.RecentImages != 6 {
		t.Errorf("expected default recent images, got %d", cfg.Monitor.RecentImages)
	}
	if cfg.DatabasePath() != filepath.Join(dir, "sightline.db") {
		t.Errorf("unexpected db path %q", cfg.DatabasePath())
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SIGHTLINE_STORAGE_ROOT", dir)
	t.Setenv("SIGHTLINE_LISTEN_ADDR", "127.0.0.1:7000")
	t.Setenv("SIGHTLINE_HEADLESS", "false")
	t.Setenv("SIGHTLINE_CHANGE_THRESHOLD", "not-a-number")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:7000" {
		t.Errorf("expected env listen addr, got %q", cfg.Server.ListenAddr)
	}
	if cfg.Capture.Headless {
		t.Error("expected headless=false from env")
	}
	if cfg.Monitor.ChangeThreshold != 50 {
		t.Errorf("unparsable env value must keep default, got %v", cfg.Monitor.ChangeThreshold)
	}
	if cfg.Storage.Root != dir {
		t.Errorf("expected storage root %q, got %q", dir, cfg.Storage.Root)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Parallel()
	cases := []func(*config.Config){
		func(c *config.Config) { c.Server.ListenAddr = "" },
		func(c *config.Config) { c.Storage.Root = " " },
		func(c *config.Config) { c.Capture.Timeout = 0 },
		func(c *config.Config) { c.Monitor.ChangeThreshold = -1 },
		func(c *config.Config) { c.Monitor.RecentImages = 0 },
		func(c *config.Config) { c.Monitor.MaxConcurrentCaptures = 0 },
	}
	for i, mutate := range cases {
		cfg := config.DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestExpandPath(t *testing.T) {
	t.Parallel()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := config.ExpandPath("~/data")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "data") {
		t.Errorf("got %q", got)
	}
	if got, _ := config.ExpandPath("/abs"); got != "/abs" {
		t.Errorf("absolute path changed: %q", got)
	}
}
