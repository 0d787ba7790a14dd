package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ambimix/internal/config"
	"ambimix/internal/noise"
	"ambimix/internal/output"
	"ambimix/internal/preset"
	"ambimix/internal/store"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, cfg config.Config) bool {
	if len(args) == 0 {
		return false
	}

	subcmd := args[0]
	switch subcmd {
	case "version":
		fmt.Printf("ambimix %s\n", Version)
		return true
	case "config":
		return cliConfig(cfg)
	case "sounds":
		return cliSounds()
	case "devices":
		return cliDevices()
	case "presets":
		return cliPresets(args[1:], cfg.ResolvedDBPath())
	case "sessions":
		return cliSessions(args[1:], cfg.ResolvedDBPath())
	case "backup":
		return cliBackup(args[1:], cfg.ResolvedDBPath())
	case "render":
		return cliRender(args[1:], cfg.SampleRate)
	default:
		return false
	}
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
	os.Exit(1)
}

func openStore(dbPath string) *store.Store {
	st, err := store.New(dbPath)
	if err != nil {
		fail("error opening database: %v\n", err)
	}
	return st
}

func cliConfig(cfg config.Config) bool {
	path, err := config.Path()
	if err != nil {
		path = "(unavailable)"
	}
	out, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Printf("Config file: %s\n", path)
	fmt.Println(string(out))
	return true
}

func cliSounds() bool {
	for _, st := range noise.All() {
		fmt.Printf("  [%d] %s\n", int(st), st)
	}
	return true
}

func cliDevices() bool {
	devices, err := output.Devices()
	if err != nil {
		fail("error listing devices: %v\n", err)
	}
	if len(devices) == 0 {
		fmt.Println("No output devices found.")
		return true
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Printf("%s [%d] %s (%.0f Hz)\n", mark, d.ID, d.Name, d.SampleRate)
	}
	return true
}

func cliPresets(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	if len(args) == 0 || args[0] == "list" {
		ps, err := st.ListPresets()
		if err != nil {
			fail("error: %v\n", err)
		}
		for _, p := range ps {
			kind := "user"
			if preset.IsDefault(p.ID) {
				kind = "built-in"
			}
			fmt.Printf("  %-24s %-20s %-8s %s / %s / %s\n", p.ID, p.Name, kind,
				p.Channel1.Sound, p.Channel2.Sound, p.Channel3.Sound)
		}
		return true
	}

	if args[0] == "export" && len(args) > 1 {
		ps, err := st.ExportPresets()
		if err != nil {
			fail("error: %v\n", err)
		}
		data, err := preset.Export(ps)
		if err != nil {
			fail("error: %v\n", err)
		}
		if err := os.WriteFile(args[1], data, 0o600); err != nil {
			fail("error writing %s: %v\n", args[1], err)
		}
		fmt.Printf("Exported %d presets to %s\n", len(ps), args[1])
		return true
	}

	if args[0] == "import" && len(args) > 1 {
		data, err := os.ReadFile(args[1])
		if err != nil {
			fail("error reading %s: %v\n", args[1], err)
		}
		ps, err := preset.ParseImport(data)
		if err != nil {
			fail("error: %v\n", err)
		}
		n, err := st.ImportPresets(ps)
		if err != nil {
			fail("import failed: %v\n", err)
		}
		fmt.Printf("Imported %d of %d presets\n", n, len(ps))
		return true
	}

	if args[0] == "share" && len(args) > 1 {
		p, err := st.GetPreset(args[1])
		if err != nil {
			fail("error: %v\n", err)
		}
		code, err := preset.EncodeShare(p)
		if err != nil {
			fail("error: %v\n", err)
		}
		fmt.Println(code)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: ambimix presets [list|export <file>|import <file>|share <id>]\n")
	os.Exit(1)
	return true
}

func cliSessions(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			fail("Usage: ambimix sessions [limit]\n")
		}
		limit = n
	}
	sessions, err := st.ListSessions(limit)
	if err != nil {
		fail("error: %v\n", err)
	}
	stats, err := st.SessionStats()
	if err != nil {
		fail("error: %v\n", err)
	}
	fmt.Printf("Completed sessions: %d (work blocks: %d)\n", stats.Sessions, stats.CompletedWork)
	fmt.Printf("Focus: %dm  Break: %dm\n", stats.FocusSeconds/60, stats.BreakSeconds/60)
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return true
	}
	for _, s := range sessions {
		status := "done"
		if !s.Completed {
			status = "reset"
		}
		fmt.Printf("  %s  %-5s %5ds  %s\n", s.EndedAt.Local().Format("2006-01-02 15:04"), s.Kind, s.Duration, status)
	}
	return true
}

func cliBackup(args []string, dbPath string) bool {
	st := openStore(dbPath)
	defer st.Close()

	outPath := "ambimix-backup.db"
	if len(args) > 0 {
		outPath = args[0]
	}

	if err := st.Backup(outPath); err != nil {
		fail("backup failed: %v\n", err)
	}
	fmt.Printf("Database backed up to %s\n", outPath)
	return true
}

// parseSound accepts a display name (case-insensitive) or a numeric id.
func parseSound(s string) (noise.SoundType, error) {
	if n, err := strconv.Atoi(s); err == nil {
		st := noise.SoundType(n)
		if !st.Valid() {
			return noise.None, fmt.Errorf("%w: %d", noise.ErrUnknownSound, n)
		}
		return st, nil
	}
	for _, st := range noise.All() {
		if strings.EqualFold(st.String(), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return noise.None, fmt.Errorf("%w: %q", noise.ErrUnknownSound, s)
}

func cliRender(args []string, sampleRate int) bool {
	if len(args) < 2 {
		fail("Usage: ambimix render <sound> <out.wav> [seconds]\n")
	}
	st, err := parseSound(args[0])
	if err != nil {
		fail("error: %v\n", err)
	}
	seconds := float64(noise.DefaultDuration)
	if len(args) > 2 {
		seconds, err = strconv.ParseFloat(args[2], 64)
		if err != nil || seconds <= 0 {
			fail("seconds must be a positive number\n")
		}
	}
	buf, err := noise.Generate(st, sampleRate, seconds, nil)
	if err != nil {
		fail("error: %v\n", err)
	}

	f, err := os.Create(args[1])
	if err != nil {
		fail("error: %v\n", err)
	}
	if err := buf.WriteWAV(f); err != nil {
		f.Close()
		fail("error: %v\n", err)
	}
	if err := f.Close(); err != nil {
		fail("error: %v\n", err)
	}
	fmt.Printf("Rendered %s (%s, %d Hz, %d ch) to %s\n", st, buf.Duration(), buf.SampleRate(), buf.Channels(), args[1])
	return true
}
