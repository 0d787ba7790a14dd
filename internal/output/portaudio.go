package output

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"ambimix/internal/mixer"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes an available output device.
type DeviceInfo struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	SampleRate float64 `json:"sampleRate"`
	Default    bool    `json:"default"`
}

// paStream abstracts a PortAudio stream for testing.
type paStream interface {
	Start() error
	Stop() error
	Close() error
}

// PortAudio renders through a PortAudio callback stream.
type PortAudio struct {
	mu         sync.Mutex
	stream     paStream
	sampleRate int
	render     atomic.Pointer[mixer.RenderFunc]
	running    atomic.Bool
	closed     bool
	terminate  func() error
}

// OpenPortAudio opens a stereo output stream on deviceID, or on the host
// default when deviceID is out of range. The stream is not started.
func OpenPortAudio(deviceID, sampleRate, framesPerBuffer int) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	devices, err := portaudio.Devices()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}
	dev, err := resolveDevice(devices, deviceID, portaudio.DefaultOutputDevice)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("resolve output device: %w", err)
	}

	pa := &PortAudio{sampleRate: sampleRate, terminate: portaudio.Terminate}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: outputChannels,
			Latency:  dev.DefaultHighOutputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, pa.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open output stream on %s: %w", dev.Name, err)
	}
	pa.stream = stream
	slog.Info("portaudio stream opened", "device", dev.Name, "sample_rate", sampleRate, "frames", framesPerBuffer)
	return pa, nil
}

// resolveDevice returns the device at idx if valid, otherwise calls fallback.
func resolveDevice(devices []*portaudio.DeviceInfo, idx int, fallback func() (*portaudio.DeviceInfo, error)) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) && devices[idx].MaxOutputChannels > 0 {
		return devices[idx], nil
	}
	return fallback()
}

// callback runs on the PortAudio thread. out is non-interleaved.
func (p *PortAudio) callback(out [][]float32) {
	fn := p.render.Load()
	if fn == nil {
		for _, ch := range out {
			clear(ch)
		}
		return
	}
	(*fn)(out)
}

func (p *PortAudio) SampleRate() int { return p.sampleRate }

// Start installs render and starts the stream.
func (p *PortAudio) Start(render mixer.RenderFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("portaudio stream closed")
	}
	p.render.Store(&render)
	if p.running.Load() {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	p.running.Store(true)
	return nil
}

// Suspended reports whether the stream has been stopped behind the engine's
// back, for example by Suspend.
func (p *PortAudio) Suspended() bool {
	return !p.running.Load()
}

// Suspend stops the stream without closing it.
func (p *PortAudio) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.running.Load() {
		return nil
	}
	p.running.Store(false)
	return p.stream.Stop()
}

// Resume restarts a suspended stream.
func (p *PortAudio) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("portaudio stream closed")
	}
	if p.running.Load() {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("resume output stream: %w", err)
	}
	p.running.Store(true)
	return nil
}

// Close stops and closes the stream, then releases PortAudio. Safe to call
// more than once.
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var firstErr error
	if p.running.Swap(false) {
		if err := p.stream.Stop(); err != nil {
			firstErr = err
		}
	}
	if err := p.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if p.terminate != nil {
		if err := p.terminate(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Devices lists PortAudio output devices.
func Devices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}
	var defName string
	if def, err := portaudio.DefaultOutputDevice(); err == nil {
		defName = def.Name
	}
	return listOutputs(devices, defName), nil
}

func listOutputs(devices []*portaudio.DeviceInfo, defName string) []DeviceInfo {
	var out []DeviceInfo
	for i, d := range devices {
		if d.MaxOutputChannels <= 0 {
			continue
		}
		out = append(out, DeviceInfo{
			ID:         i,
			Name:       d.Name,
			SampleRate: d.DefaultSampleRate,
			Default:    d.Name == defName,
		})
	}
	return out
}
