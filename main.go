package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"ambimix/internal/config"
	"ambimix/internal/core"
	"ambimix/internal/httpapi"
	"ambimix/internal/mixer"
	"ambimix/internal/output"
	"ambimix/internal/store"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

func main() {
	cfg := config.Load()

	addr := flag.String("addr", cfg.Addr, "Echo listen address")
	dbPath := flag.String("db", cfg.ResolvedDBPath(), "SQLite database path")
	backend := flag.String("backend", cfg.Backend, "Audio backend: portaudio, oto or null")
	device := flag.Int("device", cfg.OutputDeviceID, "PortAudio output device index (-1 for default)")
	rate := flag.Int("rate", cfg.SampleRate, "Output sample rate in Hz")
	debug := flag.Bool("debug", false, "Enable debug logging (auto-enabled for dev builds)")
	flag.Parse()

	cfg.Addr = *addr
	cfg.DBPath = *dbPath
	cfg.Backend = *backend
	cfg.OutputDeviceID = *device
	cfg.SampleRate = *rate

	if RunCLI(flag.Args(), cfg) {
		return
	}

	// Auto-enable debug logging for dev builds; override with -debug flag.
	level := slog.LevelInfo
	if *debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("starting ambimix", "version", Version, "addr", cfg.Addr, "db", cfg.DBPath, "backend", cfg.Backend)

	open, err := output.Opener(output.Config{
		Backend:         cfg.Backend,
		DeviceID:        cfg.OutputDeviceID,
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FramesPerBuffer,
	})
	if err != nil {
		slog.Error("audio output", "err", err)
		os.Exit(1)
	}

	sqliteStore, err := store.New(cfg.DBPath)
	if err != nil {
		slog.Error("open sqlite store", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			slog.Error("close sqlite store", "err", closeErr)
		}
	}()

	engine := mixer.New(mixer.Options{
		Open:          open,
		BufferSeconds: cfg.BufferSeconds,
		FFTSize:       cfg.FFTSize,
	})
	fade := time.Duration(cfg.FadeSeconds * float64(time.Second))
	ctrl := core.New(core.Options{Engine: engine, Store: sqliteStore, FadeDuration: fade})
	defer func() {
		if err := ctrl.Dispose(); err != nil {
			slog.Error("dispose engine", "err", err)
		}
	}()

	server := httpapi.New(ctrl, sqliteStore, httpapi.Options{
		SpectrumFPS:  cfg.SpectrumFPS,
		SpectrumBars: cfg.SpectrumBars,
		FadeDuration: fade,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("received interrupt, shutting down")
		cancel()
	}()

	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		ctrl.Run(ctx)
	}()

	slog.Info("listening", "addr", cfg.Addr)
	if err := server.Run(ctx, cfg.Addr); err != nil {
		slog.Error("server error", "err", err)
		cancel()
		<-ctrlDone
		os.Exit(1)
	}
	<-ctrlDone
	ctrl.SaveTimer()
	slog.Info("server stopped")
}
