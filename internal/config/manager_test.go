package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	m := NewManager()
	cfg, err := m.Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Performance.MaxConcurrentDownloads != 5 {
		t.Errorf("MaxConcurrentDownloads = %d, want 5", cfg.Performance.MaxConcurrentDownloads)
	}
	if cfg.Keyframe.FrameCount != 10 {
		t.Errorf("FrameCount = %d, want 10", cfg.Keyframe.FrameCount)
	}
	if cfg.Throttle.HighWatermark != 0.85 {
		t.Errorf("HighWatermark = %v, want 0.85", cfg.Throttle.HighWatermark)
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	cwd := filepath.Join(dir, "cfgtest")

	m := NewManager()
	if _, err := m.Load(cwd); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// createDefaultConfig writes to ./config relative to the process cwd,
	// not configPath.
	if _, err := os.Stat(filepath.Join("config", "config.yaml")); err != nil {
		t.Errorf("default config file not created: %v", err)
	}
	m2 := NewManager()
	if _, err := m2.Load(cwd); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
}
