// Package config manages persistent settings for ambimix.
// Settings are stored as JSON at os.UserConfigDir()/ambimix/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const appDir = "ambimix"

// Config holds device and server settings. Mixer levels and timer state live
// in the database, not here.
type Config struct {
	Backend         string  `json:"backend"`
	OutputDeviceID  int     `json:"output_device_id"`
	SampleRate      int     `json:"sample_rate"`
	FramesPerBuffer int     `json:"frames_per_buffer"`
	BufferSeconds   float64 `json:"buffer_seconds"`
	FFTSize         int     `json:"fft_size"`
	Addr            string  `json:"addr"`
	DBPath          string  `json:"db_path"`
	SpectrumFPS     int     `json:"spectrum_fps"`
	SpectrumBars    int     `json:"spectrum_bars"`
	FadeSeconds     float64 `json:"fade_seconds"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Backend:         "portaudio",
		OutputDeviceID:  -1,
		SampleRate:      48000,
		FramesPerBuffer: 1024,
		BufferSeconds:   30,
		FFTSize:         2048,
		Addr:            "127.0.0.1:7450",
		SpectrumFPS:     30,
		SpectrumBars:    64,
		FadeSeconds:     10,
	}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, "config.json"), nil
}

// DefaultDBPath places the database next to the config file, falling back
// to the working directory.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ambimix.db"
	}
	return filepath.Join(dir, appDir, "ambimix.db")
}

// ResolvedDBPath returns DBPath or the default location.
func (c Config) ResolvedDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return DefaultDBPath()
}

// Load reads the config file. A missing or unreadable file yields the
// defaults, never an error.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg.sanitize()
}

// sanitize replaces out-of-range numbers with defaults.
func (c Config) sanitize() Config {
	d := Default()
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		c.SampleRate = d.SampleRate
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = d.FramesPerBuffer
	}
	if c.BufferSeconds <= 0 {
		c.BufferSeconds = d.BufferSeconds
	}
	if c.FFTSize <= 0 {
		c.FFTSize = d.FFTSize
	}
	if c.SpectrumFPS <= 0 || c.SpectrumFPS > 120 {
		c.SpectrumFPS = d.SpectrumFPS
	}
	if c.SpectrumBars <= 0 {
		c.SpectrumBars = d.SpectrumBars
	}
	if c.FadeSeconds <= 0 {
		c.FadeSeconds = d.FadeSeconds
	}
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	return c
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
