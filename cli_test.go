package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ambimix/internal/config"
	"ambimix/internal/noise"
	"ambimix/internal/preset"
	"ambimix/internal/store"
)

// cliConfigSetup creates a temp directory with an initialized store and
// returns a config pointing at it.
func cliConfigSetup(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "ambimix.db")
	cfg.SampleRate = 8000
	st, err := store.New(cfg.DBPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	st.Close()
	return cfg
}

func cliConfigWithPresets(t *testing.T, names ...string) config.Config {
	t.Helper()
	cfg := cliConfigSetup(t)
	st, err := store.New(cfg.DBPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()
	for _, name := range names {
		p := preset.Defaults()[0]
		p.Name = name
		if _, err := st.CreatePreset(p); err != nil {
			t.Fatalf("CreatePreset(%q): %v", name, err)
		}
	}
	return cfg
}

// ---------------------------------------------------------------------------
// RunCLI: subcommand dispatch
// ---------------------------------------------------------------------------

func TestRunCLIVersionReturnsTrue(t *testing.T) {
	if !RunCLI([]string{"version"}, config.Default()) {
		t.Error("RunCLI(version) should return true")
	}
}

func TestRunCLIUnknownSubcommandReturnsFalse(t *testing.T) {
	if RunCLI([]string{"nonexistent-cmd"}, config.Default()) {
		t.Error("RunCLI(unknown) should return false")
	}
}

func TestRunCLIEmptyArgsReturnsFalse(t *testing.T) {
	if RunCLI(nil, config.Default()) {
		t.Error("RunCLI(nil) should return false")
	}
	if RunCLI([]string{}, config.Default()) {
		t.Error("RunCLI([]) should return false")
	}
}

func TestCLIConfigAndSounds(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if !RunCLI([]string{"config"}, config.Default()) {
		t.Error("RunCLI(config) should return true")
	}
	if !RunCLI([]string{"sounds"}, config.Default()) {
		t.Error("RunCLI(sounds) should return true")
	}
}

// ---------------------------------------------------------------------------
// "presets" subcommand
// ---------------------------------------------------------------------------

func TestCLIPresetsList(t *testing.T) {
	cfg := cliConfigWithPresets(t, "Night Shift")
	if !RunCLI([]string{"presets"}, cfg) {
		t.Error("RunCLI(presets) should return true")
	}
	if !RunCLI([]string{"presets", "list"}, cfg) {
		t.Error("RunCLI(presets list) should return true")
	}
	if !RunCLI([]string{"presets", "share", "deep-work"}, cfg) {
		t.Error("RunCLI(presets share) should return true")
	}
}

func TestCLIPresetsExportImport(t *testing.T) {
	src := cliConfigWithPresets(t, "One", "Two")
	file := filepath.Join(t.TempDir(), "presets.json")
	if !RunCLI([]string{"presets", "export", file}, src) {
		t.Fatal("RunCLI(presets export) should return true")
	}

	dst := cliConfigWithPresets(t, "Two")
	if !RunCLI([]string{"presets", "import", file}, dst) {
		t.Fatal("RunCLI(presets import) should return true")
	}

	st, err := store.New(dst.DBPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()
	ps, err := st.ExportPresets()
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, p := range ps {
		names[p.Name] = true
	}
	if len(ps) != 2 || !names["One"] || !names["Two"] {
		t.Fatalf("presets after import: %+v", ps)
	}
}

// ---------------------------------------------------------------------------
// "sessions" subcommand
// ---------------------------------------------------------------------------

func TestCLISessions(t *testing.T) {
	cfg := cliConfigSetup(t)
	if !RunCLI([]string{"sessions"}, cfg) {
		t.Error("RunCLI(sessions) on empty db should return true")
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	end := time.Now()
	if _, err := st.InsertSession(store.Session{
		Kind: store.KindWork, StartedAt: end.Add(-25 * time.Minute), EndedAt: end, Duration: 1500, Completed: true,
	}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	if !RunCLI([]string{"sessions", "5"}, cfg) {
		t.Error("RunCLI(sessions 5) should return true")
	}
}

// ---------------------------------------------------------------------------
// "backup" subcommand
// ---------------------------------------------------------------------------

func TestCLIBackupCustomPath(t *testing.T) {
	cfg := cliConfigWithPresets(t, "Backed Up")
	outPath := filepath.Join(t.TempDir(), "custom-backup.db")

	if !RunCLI([]string{"backup", outPath}, cfg) {
		t.Error("RunCLI(backup <path>) should return true")
	}

	backupStore, err := store.New(outPath)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer backupStore.Close()

	ps, err := backupStore.ExportPresets()
	if err != nil || len(ps) != 1 || ps[0].Name != "Backed Up" {
		t.Errorf("backup should contain the user preset, got %+v err=%v", ps, err)
	}
}

func TestCLIBackupDefaultPath(t *testing.T) {
	cfg := cliConfigSetup(t)

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	tmpDir := t.TempDir()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	defer os.Chdir(origDir)

	if !RunCLI([]string{"backup"}, cfg) {
		t.Error("RunCLI(backup) should return true")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "ambimix-backup.db")); err != nil {
		t.Errorf("backup file should exist at default path: %v", err)
	}
}

// ---------------------------------------------------------------------------
// "render" subcommand
// ---------------------------------------------------------------------------

func TestCLIRenderWritesWAV(t *testing.T) {
	cfg := cliConfigSetup(t)
	out := filepath.Join(t.TempDir(), "rain.wav")
	if !RunCLI([]string{"render", "rain", out, "0.25"}, cfg) {
		t.Fatal("RunCLI(render) should return true")
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	// 8000 Hz x 0.25 s, stereo 16-bit, plus the 44-byte header.
	if want := 44 + 2000*4; len(data) != want {
		t.Fatalf("wav size = %d, want %d", len(data), want)
	}
	if string(data[:4]) != "RIFF" {
		t.Fatalf("missing RIFF header")
	}
}

func TestParseSound(t *testing.T) {
	cases := map[string]noise.SoundType{
		"Brown Noise":  noise.BrownNoise,
		"brown noise":  noise.BrownNoise,
		" campfire ":   noise.Campfire,
		"4":            noise.BinauralAlpha,
		"OCEAN WAVES":  noise.OceanWaves,
		"Thunderstorm": noise.Thunderstorm,
	}
	for in, want := range cases {
		got, err := parseSound(in)
		if err != nil || got != want {
			t.Errorf("parseSound(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"traffic", "42", "-1", ""} {
		if _, err := parseSound(bad); !errors.Is(err, noise.ErrUnknownSound) {
			t.Errorf("parseSound(%q) err = %v, want ErrUnknownSound", bad, err)
		}
	}
}
