package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PULSE_SESSION_ID", "s-1")
	t.Setenv("PULSE_CAPTURE_INTERVAL_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionID != "s-1" {
		t.Fatalf("SessionID = %q; want %q", cfg.SessionID, "s-1")
	}
	if cfg.CaptureInterval != time.Second {
		t.Fatalf("CaptureInterval = %v; want 1s", cfg.CaptureInterval)
	}
	if cfg.ReconnectDelay != 3*time.Second {
		t.Fatalf("ReconnectDelay = %v; want 3s", cfg.ReconnectDelay)
	}
	if cfg.CaptureMaxDim != 768 {
		t.Fatalf("CaptureMaxDim = %d; want 768", cfg.CaptureMaxDim)
	}
	if got, want := cfg.CDPURL(), "http://127.0.0.1:9220"; got != want {
		t.Fatalf("CDPURL() = %q; want %q", got, want)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PULSE_AGENT_URL", "wss://agent.example/")
	t.Setenv("PULSE_RECONNECT_DELAY_MS", "10")
	t.Setenv("PULSE_LOG_LEVEL", "DEBUG")
	t.Setenv("PULSE_HEADER_HEIGHT", "oops")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReconnectDelay != 100*time.Millisecond {
		t.Fatalf("ReconnectDelay = %v; want clamp to 100ms", cfg.ReconnectDelay)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
	if cfg.HeaderHeight != 80 {
		t.Fatalf("HeaderHeight = %d; want default 80", cfg.HeaderHeight)
	}
}

func TestLoadRejectsHTTPAgentURL(t *testing.T) {
	t.Setenv("PULSE_AGENT_URL", "http://agent.example")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil; want error")
	}
}

func TestLoadStartupSurfaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "surfaces.yaml")
	data := "surfaces:\n  - url: https://news.ycombinator.com\n  - url: example.com\nactive: 1\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadStartupSurfaces(path)
	if err != nil {
		t.Fatalf("LoadStartupSurfaces() error = %v", err)
	}
	if len(cfg.Surfaces) != 2 || cfg.Surfaces[1].URL != "example.com" || cfg.Active != 1 {
		t.Fatalf("LoadStartupSurfaces() = %+v; want two entries, active 1", cfg)
	}
}

func TestLoadStartupSurfacesErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadStartupSurfaces(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file error = %v; want os.ErrNotExist", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("surfaces:\n  - url: \"\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadStartupSurfaces(bad); err == nil {
		t.Fatal("LoadStartupSurfaces(empty url) error = nil; want error")
	}
}
