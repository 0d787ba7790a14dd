// Package mixer is the channel-mixing runtime.
//
// An Engine owns one output device, a master gain stage and three channels.
// Each channel plays at most one looping buffer from a cache generated once
// per Initialize. Only one Engine should exist per process; main constructs
// it and hands it to the components that need it.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ambimix/internal/analyser"
	"ambimix/internal/noise"
	"ambimix/internal/preset"

	"golang.org/x/sync/errgroup"
)

const (
	// NumChannels is the fixed number of mixer slots, numbered 1..NumChannels.
	NumChannels = 3
	// DefaultMasterGain is the master level after Initialize.
	DefaultMasterGain = 0.8
	// DefaultChannelGain is the channel level after Initialize and unmute.
	DefaultChannelGain = 0.7
	// FadeFloor is the level a fade ramps towards before channels stop.
	FadeFloor = 0.001
	// DefaultFadeDuration is used when FadeOut is given no duration.
	DefaultFadeDuration = 10 * time.Second
)

var (
	// ErrNotInitialized is returned by operations on an engine that has not
	// been initialized or has been disposed.
	ErrNotInitialized = errors.New("audio engine not initialized")
	// ErrUnknownChannel is returned for channel IDs outside 1..NumChannels.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrBufferMissing is returned when the cache holds no buffer for a sound.
	ErrBufferMissing = errors.New("sound buffer not found")
)

// Options configures an Engine.
type Options struct {
	// Open claims the output device. Required.
	Open OpenFunc
	// BufferSeconds is the loop length of each generated buffer.
	BufferSeconds float64
	// NewSource supplies the random stream for one generator. Each call must
	// return an independent Source.
	NewSource func(noise.SoundType) noise.Source
	// FFTSize is the analyser window length.
	FFTSize int
}

// Engine mixes up to three looping sounds into one output device.
type Engine struct {
	// lifecycle serialises Initialize and Dispose.
	lifecycle sync.Mutex

	mu          sync.Mutex
	opts        Options
	device      Device
	initialized bool
	sampleRate  int
	master      param
	channels    [NumChannels]*Channel
	cache       map[noise.SoundType]*noise.Buffer
	tap         *analyser.Analyser

	// fade is non-nil while a FadeOut is in flight; fadeSeq identifies the
	// newest one.
	fade    *fadeState
	fadeSeq uint64
}

type fadeState struct {
	restore float64
}

// New returns an uninitialized Engine.
func New(opts Options) *Engine {
	if opts.BufferSeconds <= 0 {
		opts.BufferSeconds = noise.DefaultDuration
	}
	if opts.NewSource == nil {
		opts.NewSource = func(noise.SoundType) noise.Source { return noise.NewRandomSource() }
	}
	if opts.FFTSize <= 0 {
		opts.FFTSize = analyser.DefaultFFTSize
	}
	return &Engine{opts: opts}
}

// AvailableSounds returns every SoundType in display order, None first.
func (e *Engine) AvailableSounds() []noise.SoundType {
	return noise.All()
}

// Initialize claims the output device, builds the gain stages and generates
// one buffer per sound. It is a no-op when already initialized. On error the
// engine is left uninitialized and the device, if any, is closed.
func (e *Engine) Initialize(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.Initialized() {
		return nil
	}
	if e.opts.Open == nil {
		return fmt.Errorf("initialize audio engine: no output device configured")
	}

	start := time.Now()
	dev, err := e.opts.Open(ctx)
	if err != nil {
		return fmt.Errorf("open output device: %w", err)
	}

	cache, err := e.generate(ctx, dev.SampleRate())
	if err != nil {
		_ = dev.Close()
		return err
	}

	e.mu.Lock()
	e.device = dev
	e.sampleRate = dev.SampleRate()
	e.master.set(DefaultMasterGain)
	for i := range e.channels {
		e.channels[i] = newChannel(i + 1)
	}
	e.cache = cache
	e.tap = analyser.New(e.opts.FFTSize)
	e.fade = nil
	e.initialized = true
	e.mu.Unlock()

	if err := dev.Start(e.Render); err != nil {
		e.mu.Lock()
		e.resetLocked()
		e.mu.Unlock()
		_ = dev.Close()
		return fmt.Errorf("start output device: %w", err)
	}

	slog.Info("audio engine initialized",
		"sample_rate", dev.SampleRate(),
		"buffers", len(cache),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// generate builds every buffer concurrently and returns once all are ready.
func (e *Engine) generate(ctx context.Context, sampleRate int) (map[noise.SoundType]*noise.Buffer, error) {
	var mu sync.Mutex
	cache := make(map[noise.SoundType]*noise.Buffer, len(noise.Playable()))

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range noise.Playable() {
		src := e.opts.NewSource(st)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			buf, err := noise.Generate(st, sampleRate, e.opts.BufferSeconds, src)
			if err != nil {
				return fmt.Errorf("generate %s: %w", st, err)
			}
			mu.Lock()
			cache[st] = buf
			mu.Unlock()
			slog.Debug("buffer generated", "sound", st, "frames", buf.Frames(), "channels", buf.Channels())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cache, nil
}

// Initialized reports whether the engine is ready for playback.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// CacheSize returns the number of cached buffers.
func (e *Engine) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// Analyser returns the output analysis tap, or nil when uninitialized.
func (e *Engine) Analyser() *analyser.Analyser {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	return e.tap
}

func (e *Engine) channelLocked(id int) (*Channel, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if id < 1 || id > NumChannels {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	return e.channels[id-1], nil
}

// LoadSound binds st to channel id, replacing whatever was there. None
// leaves the channel idle. A channel that was playing keeps playing the new
// sound. On error the channel is left untouched.
func (e *Engine) LoadSound(id int, st noise.SoundType) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.channelLocked(id)
	if err != nil {
		return err
	}
	if !st.Valid() {
		return fmt.Errorf("%w: %d", noise.ErrUnknownSound, int(st))
	}

	var buf *noise.Buffer
	if st != noise.None {
		buf = e.cache[st]
		if buf == nil {
			slog.Warn("sound buffer missing", "channel", id, "sound", st)
			return fmt.Errorf("%w: %s", ErrBufferMissing, st)
		}
	}

	c.discard()
	c.sound = st
	if st == noise.None {
		c.playing = false
		slog.Debug("channel cleared", "channel", id)
		return nil
	}

	c.voice = newVoice(buf)
	if c.playing {
		if err := c.voice.start(); err != nil {
			return err
		}
	}
	slog.Debug("sound loaded", "channel", id, "sound", st, "playing", c.playing)
	return nil
}

// PlayChannel starts the sound bound to channel id. A suspended device is
// resumed first; if that fails the channel stays stopped. Channels with no
// sound, or already playing, are left as they are.
func (e *Engine) PlayChannel(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.channelLocked(id)
	if err != nil {
		return err
	}
	return e.playLocked(c)
}

func (e *Engine) playLocked(c *Channel) error {
	if c.playing || c.voice == nil || c.sound == noise.None {
		return nil
	}
	if e.device.Suspended() {
		if err := e.device.Resume(); err != nil {
			slog.Warn("resume output device", "channel", c.id, "err", err)
			return fmt.Errorf("resume output device: %w", err)
		}
	}
	if c.voice.spent() {
		buf := e.cache[c.sound]
		if buf == nil {
			return fmt.Errorf("%w: %s", ErrBufferMissing, c.sound)
		}
		c.voice = newVoice(buf)
	}
	if err := c.voice.start(); err != nil {
		return err
	}
	c.playing = true
	slog.Debug("channel playing", "channel", c.id, "sound", c.sound)
	return nil
}

// StopChannel stops channel id. The spent voice stays bound so the channel
// remains loaded.
func (e *Engine) StopChannel(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.channelLocked(id)
	if err != nil {
		return err
	}
	e.stopLocked(c)
	return nil
}

func (e *Engine) stopLocked(c *Channel) {
	if c.voice == nil || !c.playing {
		return
	}
	c.voice.stop()
	c.playing = false
	slog.Debug("channel stopped", "channel", c.id)
}

// PlayAll plays channels in ascending order. A failure on one channel does
// not prevent the others from starting.
func (e *Engine) PlayAll() error {
	var errs []error
	for id := 1; id <= NumChannels; id++ {
		if err := e.PlayChannel(id); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// StopAll stops channels in ascending order.
func (e *Engine) StopAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return ErrNotInitialized
	}
	e.stopAllLocked()
	return nil
}

func (e *Engine) stopAllLocked() {
	for _, c := range e.channels {
		e.stopLocked(c)
	}
}

// SetChannelVolume sets channel id from a 0-100 slider on a squared curve.
func (e *Engine) SetChannelVolume(id int, volume float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.channelLocked(id)
	if err != nil {
		return err
	}
	c.volume = clampVolume(volume)
	c.gain = volumeToGain(c.volume)
	return nil
}

// SetChannelMute silences channel id, or sets it back to DefaultChannelGain.
// Unmuting does not restore the last slider value.
func (e *Engine) SetChannelMute(id int, muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.channelLocked(id)
	if err != nil {
		return err
	}
	c.muted = muted
	if muted {
		c.gain = 0
	} else {
		c.gain = DefaultChannelGain
	}
	return nil
}

// SetMasterVolume sets the master stage from a 0-100 slider. During a fade
// the new level is applied when the fade restores.
func (e *Engine) SetMasterVolume(volume float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	gain := volumeToGain(volume)
	if e.fade != nil {
		e.fade.restore = gain
		return nil
	}
	e.master.set(gain)
	return nil
}

// ChannelGain returns the current gain of channel id.
func (e *Engine) ChannelGain(id int) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.channelLocked(id)
	if err != nil {
		return 0, err
	}
	return c.gain, nil
}

// MasterGain returns the current master gain.
func (e *Engine) MasterGain() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master.value
}

// ChannelState returns the playback state of channel id.
func (e *Engine) ChannelState(id int) (ChannelState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.channelLocked(id)
	if err != nil {
		return Idle, err
	}
	return c.state(), nil
}

// ApplyPreset loads every channel of p. Channels marked muted are muted after
// their volume is set, so unmuted channels keep the preset volume.
func (e *Engine) ApplyPreset(p preset.Preset) error {
	if !e.Initialized() {
		return ErrNotInitialized
	}
	var errs []error
	for i, cs := range p.Channels() {
		id := i + 1
		if err := e.LoadSound(id, cs.Sound); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", id, err))
			continue
		}
		if err := e.SetChannelVolume(id, cs.Volume); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", id, err))
		}
		if cs.Muted {
			if err := e.SetChannelMute(id, true); err != nil {
				errs = append(errs, fmt.Errorf("channel %d: %w", id, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("preset applied with errors", "id", p.ID, "name", p.Name, "err", err)
		return err
	}
	slog.Info("preset applied", "id", p.ID, "name", p.Name)
	return nil
}

// Snapshot is a read-only view of the engine.
type Snapshot struct {
	Initialized bool              `json:"initialized"`
	SampleRate  int               `json:"sample_rate,omitempty"`
	MasterGain  float64           `json:"master_gain"`
	Fading      bool              `json:"fading"`
	Channels    []ChannelSnapshot `json:"channels"`
}

// Snapshot returns the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Initialized: e.initialized,
		Channels:    []ChannelSnapshot{},
	}
	if !e.initialized {
		return snap
	}
	snap.SampleRate = e.sampleRate
	snap.MasterGain = e.master.value
	snap.Fading = e.fade != nil
	for _, c := range e.channels {
		snap.Channels = append(snap.Channels, c.snapshot())
	}
	return snap
}

// Render mixes playing channels into out through the channel and master
// stages. It is the device callback and writes silence when uninitialized.
func (e *Engine) Render(out [][]float32) {
	for _, ch := range out {
		clear(ch)
	}
	if len(out) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return
	}

	for _, c := range e.channels {
		if c.voice != nil && c.voice.active() {
			c.voice.mix(out, float32(c.gain))
		}
	}
	for i := range out[0] {
		m := float32(e.master.next())
		for ch := range out {
			out[ch][i] = clampFloat32(out[ch][i] * m)
		}
	}
	e.tap.WriteFrames(out)
}

// Dispose stops every channel, closes the device and clears the cache. The
// engine can be initialized again afterwards. Dispose on an uninitialized
// engine is a no-op.
func (e *Engine) Dispose() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return nil
	}
	e.stopAllLocked()
	dev := e.device
	e.resetLocked()
	e.mu.Unlock()

	if err := dev.Close(); err != nil {
		return fmt.Errorf("close output device: %w", err)
	}
	slog.Info("audio engine disposed")
	return nil
}

func (e *Engine) resetLocked() {
	for i, c := range e.channels {
		if c != nil {
			c.discard()
		}
		e.channels[i] = nil
	}
	e.device = nil
	e.cache = nil
	e.tap = nil
	e.fade = nil
	e.fadeSeq++
	e.initialized = false
}
