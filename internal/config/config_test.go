package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ambimix/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.Backend != "portaudio" {
		t.Errorf("expected portaudio backend, got %q", cfg.Backend)
	}
	if cfg.OutputDeviceID != -1 {
		t.Error("expected device ID to default to -1")
	}
	if cfg.SampleRate != 48000 || cfg.BufferSeconds != 30 {
		t.Errorf("unexpected audio defaults: %+v", cfg)
	}
	if cfg.FadeSeconds != 10 {
		t.Errorf("expected 10s fade, got %v", cfg.FadeSeconds)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := config.Default()
	cfg.Backend = "oto"
	cfg.OutputDeviceID = 3
	cfg.SampleRate = 44100
	cfg.Addr = "0.0.0.0:9000"
	cfg.SpectrumBars = 32

	if err := config.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ambimix", "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded := config.Load()
	if loaded != cfg {
		t.Errorf("loaded %+v, want %+v", loaded, cfg)
	}
}

func TestLoadMissingReturnsDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if got := config.Load(); got != config.Default() {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestLoadCorruptReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "ambimix"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ambimix", "config.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := config.Load(); got != config.Default() {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestLoadSanitizesRanges(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	os.MkdirAll(filepath.Join(dir, "ambimix"), 0o750)
	raw := `{"backend":"null","sample_rate":5,"spectrum_fps":1000,"buffer_seconds":-2}`
	if err := os.WriteFile(filepath.Join(dir, "ambimix", "config.json"), []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	got := config.Load()
	d := config.Default()
	if got.Backend != "null" {
		t.Errorf("backend = %q", got.Backend)
	}
	if got.SampleRate != d.SampleRate || got.SpectrumFPS != d.SpectrumFPS || got.BufferSeconds != d.BufferSeconds {
		t.Errorf("out-of-range values kept: %+v", got)
	}
}

func TestResolvedDBPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := config.Default()
	if p := cfg.ResolvedDBPath(); !strings.HasSuffix(p, filepath.Join("ambimix", "ambimix.db")) {
		t.Errorf("default db path = %q", p)
	}
	cfg.DBPath = "/tmp/custom.db"
	if p := cfg.ResolvedDBPath(); p != "/tmp/custom.db" {
		t.Errorf("db path = %q", p)
	}
}
