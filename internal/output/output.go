// Package output provides the audio devices the mixer renders into.
package output

import (
	"context"
	"fmt"
	"strings"

	"ambimix/internal/mixer"
)

// Backend names accepted by Opener.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
	BackendNull      = "null"
)

const (
	// DefaultSampleRate is used when the config leaves it unset.
	DefaultSampleRate = 48000
	// DefaultFramesPerBuffer is the render block size, ~21 ms at 48 kHz.
	DefaultFramesPerBuffer = 1024
	// outputChannels is fixed at stereo; mono buffers feed both sides.
	outputChannels = 2
)

// Config selects and tunes an output device.
type Config struct {
	Backend         string
	DeviceID        int // PortAudio device index; -1 for the host default
	SampleRate      int
	FramesPerBuffer int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = DefaultFramesPerBuffer
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendPortAudio
	}
	return c
}

// Opener returns a mixer.OpenFunc for cfg. Nothing is opened until the
// engine initializes.
func Opener(cfg Config) (mixer.OpenFunc, error) {
	cfg = cfg.withDefaults()
	switch cfg.Backend {
	case BackendPortAudio:
		return func(context.Context) (mixer.Device, error) {
			return OpenPortAudio(cfg.DeviceID, cfg.SampleRate, cfg.FramesPerBuffer)
		}, nil
	case BackendOto:
		return func(context.Context) (mixer.Device, error) {
			return OpenOto(cfg.SampleRate)
		}, nil
	case BackendNull:
		return func(context.Context) (mixer.Device, error) {
			return NewNull(cfg.SampleRate, cfg.FramesPerBuffer), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}
