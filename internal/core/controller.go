// Package core holds the authoritative mixer settings and drives the engine,
// the focus timer and persistence from them.
//
// Settings exist before the audio engine does: a channel can be given a sound
// and a volume while the engine is down, and Initialize brings the engine in
// line with them. Every change is saved to the store under settingsKey.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ambimix/internal/mixer"
	"ambimix/internal/noise"
	"ambimix/internal/preset"
	"ambimix/internal/store"
	"ambimix/internal/timer"
)

const (
	settingsKey = "mixer"
	timerKey    = "timer"
)

// ErrInvalid is returned for out-of-range setting values.
var ErrInvalid = errors.New("invalid setting")

// Settings mirrors what the user sees on the mixer panel.
type Settings struct {
	Channels          [mixer.NumChannels]preset.ChannelSetting `json:"channels"`
	MasterVolume      float64                                  `json:"masterVolume"`
	VisualizerEnabled bool                                     `json:"visualizerEnabled"`
	VisualizerOpacity float64                                  `json:"visualizerOpacity"`
}

// DefaultSettings is the first-run panel.
func DefaultSettings() Settings {
	return Settings{
		Channels: [mixer.NumChannels]preset.ChannelSetting{
			{Sound: noise.BrownNoise, Volume: 70},
			{Sound: noise.None, Volume: 50},
			{Sound: noise.None, Volume: 30},
		},
		MasterVolume:      80,
		VisualizerEnabled: true,
		VisualizerOpacity: 30,
	}
}

func validPercent(v float64) bool {
	return v >= 0 && v <= 100
}

func (s Settings) validate() error {
	for i, cs := range s.Channels {
		if !cs.Sound.Valid() || !validPercent(cs.Volume) {
			return fmt.Errorf("%w: channel %d", ErrInvalid, i+1)
		}
	}
	if !validPercent(s.MasterVolume) || !validPercent(s.VisualizerOpacity) {
		return fmt.Errorf("%w: master or visualizer level", ErrInvalid)
	}
	return nil
}

// Options configures a Controller.
type Options struct {
	Engine *mixer.Engine
	// Store is optional; without it nothing is persisted.
	Store *store.Store
	// FadeDuration is the fade run when a timer session completes.
	FadeDuration time.Duration
	// Now is passed to the timer; defaults to time.Now.
	Now func() time.Time
}

// Controller is safe for concurrent use.
type Controller struct {
	engine *mixer.Engine
	store  *store.Store
	timer  *timer.Timer
	fade   time.Duration

	mu       sync.Mutex
	settings Settings
	runCtx   context.Context
	fades    sync.WaitGroup
}

// New builds a controller, restoring saved settings and timer state when the
// store has them.
func New(opts Options) *Controller {
	if opts.FadeDuration <= 0 {
		opts.FadeDuration = mixer.DefaultFadeDuration
	}
	c := &Controller{
		engine:   opts.Engine,
		store:    opts.Store,
		fade:     opts.FadeDuration,
		settings: DefaultSettings(),
		runCtx:   context.Background(),
	}
	c.timer = timer.New(timer.Options{OnComplete: c.onTimerComplete, Now: opts.Now})
	c.restore()
	return c
}

func (c *Controller) restore() {
	if c.store == nil {
		return
	}
	if raw, ok, err := c.store.GetSetting(settingsKey); err != nil {
		slog.Warn("[core] read saved settings", "err", err)
	} else if ok {
		s := DefaultSettings()
		if err := json.Unmarshal([]byte(raw), &s); err != nil || s.validate() != nil {
			slog.Warn("[core] ignoring saved settings", "err", err)
		} else {
			c.settings = s
		}
	}
	if raw, ok, err := c.store.GetSetting(timerKey); err != nil {
		slog.Warn("[core] read saved timer", "err", err)
	} else if ok {
		var st timer.State
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			slog.Warn("[core] ignoring saved timer", "err", err)
		} else if err := c.timer.Restore(st); err != nil {
			slog.Warn("[core] ignoring saved timer", "err", err)
		}
	}
}

// Engine returns the mixer engine.
func (c *Controller) Engine() *mixer.Engine { return c.engine }

// Timer returns the focus timer. Callers that change it should follow up
// with SaveTimer.
func (c *Controller) Timer() *timer.Timer { return c.timer }

// Settings returns a copy of the current settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// State is the full read model served to clients.
type State struct {
	Settings Settings       `json:"settings"`
	Engine   mixer.Snapshot `json:"engine"`
	Timer    timer.State    `json:"timer"`
}

// State returns settings, engine and timer together.
func (c *Controller) State() State {
	return State{
		Settings: c.Settings(),
		Engine:   c.engine.Snapshot(),
		Timer:    c.timer.State(),
	}
}

// Spectrum returns bars spectrum values in 0..1 and the output RMS level.
// ok is false while the engine is down.
func (c *Controller) Spectrum(bars int) (values []float64, level float64, ok bool) {
	a := c.engine.Analyser()
	if a == nil {
		return nil, 0, false
	}
	return a.Bars(bars), a.Level(), true
}

// Initialize starts the engine and applies the current settings to it.
func (c *Controller) Initialize(ctx context.Context) error {
	if err := c.engine.Initialize(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	s := c.settings
	c.mu.Unlock()
	return c.sync(s)
}

// sync pushes s into an initialized engine.
func (c *Controller) sync(s Settings) error {
	var errs []error
	if err := c.engine.SetMasterVolume(s.MasterVolume); err != nil {
		errs = append(errs, err)
	}
	for i, cs := range s.Channels {
		if err := c.applyChannel(i+1, cs); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) applyChannel(id int, cs preset.ChannelSetting) error {
	if err := c.engine.LoadSound(id, cs.Sound); err != nil {
		return err
	}
	if err := c.engine.SetChannelVolume(id, cs.Volume); err != nil {
		return err
	}
	if cs.Muted {
		return c.engine.SetChannelMute(id, true)
	}
	return nil
}

// Dispose shuts the engine down. Settings are kept.
func (c *Controller) Dispose() error {
	return c.engine.Dispose()
}

func checkChannel(id int) error {
	if id < 1 || id > mixer.NumChannels {
		return fmt.Errorf("%w: %d", mixer.ErrUnknownChannel, id)
	}
	return nil
}

// update applies fn to a copy of the settings, stores it and, when the
// engine is up, runs push against it.
func (c *Controller) update(fn func(*Settings) error, push func(Settings) error) error {
	c.mu.Lock()
	next := c.settings
	if err := fn(&next); err != nil {
		c.mu.Unlock()
		return err
	}
	c.settings = next
	c.mu.Unlock()

	c.persist(settingsKey, next)
	if push == nil || !c.engine.Initialized() {
		return nil
	}
	return push(next)
}

func (c *Controller) persist(key string, v any) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("[core] encode state", "key", key, "err", err)
		return
	}
	if err := c.store.SetSetting(key, string(data)); err != nil {
		slog.Warn("[core] save state", "key", key, "err", err)
	}
}

// SetSound assigns st to channel id.
func (c *Controller) SetSound(id int, st noise.SoundType) error {
	if err := checkChannel(id); err != nil {
		return err
	}
	if !st.Valid() {
		return fmt.Errorf("%w: %d", noise.ErrUnknownSound, int(st))
	}
	return c.update(func(s *Settings) error {
		s.Channels[id-1].Sound = st
		return nil
	}, func(s Settings) error {
		return c.engine.LoadSound(id, st)
	})
}

// SetVolume sets the 0-100 slider of channel id. A muted channel stays
// silent until unmuted.
func (c *Controller) SetVolume(id int, volume float64) error {
	if err := checkChannel(id); err != nil {
		return err
	}
	if !validPercent(volume) {
		return fmt.Errorf("%w: volume %v", ErrInvalid, volume)
	}
	return c.update(func(s *Settings) error {
		s.Channels[id-1].Volume = volume
		return nil
	}, func(s Settings) error {
		if err := c.engine.SetChannelVolume(id, volume); err != nil {
			return err
		}
		if s.Channels[id-1].Muted {
			return c.engine.SetChannelMute(id, true)
		}
		return nil
	})
}

// SetMute mutes or unmutes channel id. Unmuting brings back the slider
// level rather than the engine's fixed unmute level.
func (c *Controller) SetMute(id int, muted bool) error {
	if err := checkChannel(id); err != nil {
		return err
	}
	return c.update(func(s *Settings) error {
		s.Channels[id-1].Muted = muted
		return nil
	}, func(s Settings) error {
		if err := c.engine.SetChannelMute(id, muted); err != nil {
			return err
		}
		if !muted {
			return c.engine.SetChannelVolume(id, s.Channels[id-1].Volume)
		}
		return nil
	})
}

// SetMasterVolume sets the 0-100 master slider.
func (c *Controller) SetMasterVolume(volume float64) error {
	if !validPercent(volume) {
		return fmt.Errorf("%w: master volume %v", ErrInvalid, volume)
	}
	return c.update(func(s *Settings) error {
		s.MasterVolume = volume
		return nil
	}, func(Settings) error {
		return c.engine.SetMasterVolume(volume)
	})
}

// SetVisualizer stores the visualizer preferences.
func (c *Controller) SetVisualizer(enabled bool, opacity float64) error {
	if !validPercent(opacity) {
		return fmt.Errorf("%w: opacity %v", ErrInvalid, opacity)
	}
	return c.update(func(s *Settings) error {
		s.VisualizerEnabled = enabled
		s.VisualizerOpacity = opacity
		return nil
	}, nil)
}

// ApplyPreset replaces the channel and visualizer settings with p. The
// master level is left alone.
func (c *Controller) ApplyPreset(p preset.Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return c.update(func(s *Settings) error {
		s.Channels = p.Channels()
		s.VisualizerEnabled = p.VisualizerEnabled
		s.VisualizerOpacity = p.VisualizerOpacity
		return nil
	}, func(Settings) error {
		return c.engine.ApplyPreset(p)
	})
}

// CurrentPreset captures the current settings as an unsaved preset.
func (c *Controller) CurrentPreset(name string) preset.Preset {
	s := c.Settings()
	return preset.Preset{
		Name:              name,
		Channel1:          s.Channels[0],
		Channel2:          s.Channels[1],
		Channel3:          s.Channels[2],
		VisualizerEnabled: s.VisualizerEnabled,
		VisualizerOpacity: s.VisualizerOpacity,
	}
}

// SaveTimer persists the timer state.
func (c *Controller) SaveTimer() {
	c.persist(timerKey, c.timer.State())
}

// Run drives the timer until ctx is done. Fades started by completed
// sessions use ctx and are waited for before Run returns.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()

	c.timer.Run(ctx)
	c.fades.Wait()
}

func (c *Controller) onTimerComplete(done timer.Completion) {
	c.SaveTimer()
	if c.store != nil {
		_, err := c.store.InsertSession(store.Session{
			Kind:      done.Kind(),
			StartedAt: done.StartedAt,
			EndedAt:   done.EndedAt,
			Duration:  done.Elapsed,
			Completed: done.Completed,
		})
		if err != nil {
			slog.Warn("[core] record session", "err", err)
		}
	}
	if !done.Completed || !c.engine.Initialized() {
		return
	}

	c.mu.Lock()
	ctx := c.runCtx
	c.mu.Unlock()
	c.fades.Add(1)
	go func() {
		defer c.fades.Done()
		if err := c.engine.FadeOut(ctx, c.fade); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("[core] session fade", "err", err)
		}
	}()
}

// WaitFades blocks until fades started by completed sessions have returned.
func (c *Controller) WaitFades() {
	c.fades.Wait()
}
