package mixer

import "context"

// RenderFunc fills one block of non-interleaved output. Every slice in out
// has the same length.
type RenderFunc func(out [][]float32)

// Device is an audio output that pulls samples from a RenderFunc.
type Device interface {
	// SampleRate is fixed for the lifetime of the device.
	SampleRate() int
	// Start begins calling render from the device's own goroutine.
	Start(render RenderFunc) error
	// Suspended reports whether the output is paused by the host.
	Suspended() bool
	// Resume restarts a suspended output.
	Resume() error
	// Close stops rendering and releases the device. Render is not called
	// after Close returns.
	Close() error
}

// OpenFunc claims an output device. It is called once per Initialize.
type OpenFunc func(ctx context.Context) (Device, error)
