// Package analyser is a frequency-analysis tap on the mixer output.
//
// The render loop writes every output block into a ring buffer holding the
// most recent FFTSize mono samples. Readers take snapshots on demand: a
// Blackman-windowed FFT with exponential smoothing between calls, mapped to
// decibels and then to bytes over a fixed range. The conventions follow the
// browser AnalyserNode so dashboards written against it draw the same way.
package analyser

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// DefaultFFTSize is the analysis window length in samples.
	DefaultFFTSize = 2048
	// DefaultSmoothing blends each magnitude with the previous snapshot.
	DefaultSmoothing = 0.8
	// MinDecibels maps to byte 0.
	MinDecibels = -100.0
	// MaxDecibels maps to byte 255.
	MaxDecibels = -30.0
)

// Analyser holds the latest output window. One writer (the render loop) and
// any number of readers may use it concurrently.
type Analyser struct {
	mu sync.Mutex

	size      int
	ring      []float32
	pos       int
	smoothing float64
	window    []float64
	smoothed  []float64
}

// New returns an Analyser over size samples. size must be a power of two;
// anything else falls back to DefaultFFTSize.
func New(size int) *Analyser {
	if size < 32 || size&(size-1) != 0 {
		size = DefaultFFTSize
	}
	return &Analyser{
		size:      size,
		ring:      make([]float32, size),
		smoothing: DefaultSmoothing,
		window:    blackman(size),
		smoothed:  make([]float64, size/2),
	}
}

func blackman(n int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

// FFTSize returns the analysis window length.
func (a *Analyser) FFTSize() int { return a.size }

// FrequencyBinCount is half the FFT size.
func (a *Analyser) FrequencyBinCount() int { return a.size / 2 }

// SetSmoothing sets the time constant in [0, 1]. 0 disables smoothing.
func (a *Analyser) SetSmoothing(tau float64) {
	tau = math.Max(0, math.Min(1, tau))
	a.mu.Lock()
	a.smoothing = tau
	a.mu.Unlock()
}

// Write appends mono samples.
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.size
	}
	a.mu.Unlock()
}

// WriteFrames downmixes a non-interleaved block and appends it.
func (a *Analyser) WriteFrames(block [][]float32) {
	if len(block) == 0 {
		return
	}
	n := len(block[0])
	scale := 1 / float32(len(block))
	a.mu.Lock()
	for i := 0; i < n; i++ {
		var sum float32
		for _, ch := range block {
			sum += ch[i]
		}
		a.ring[a.pos] = sum * scale
		a.pos = (a.pos + 1) % a.size
	}
	a.mu.Unlock()
}

// Reset clears the ring and the smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
	a.mu.Unlock()
}

// snapshotLocked returns the ring in chronological order.
func (a *Analyser) snapshotLocked() []float64 {
	out := make([]float64, a.size)
	for i := range out {
		out[i] = float64(a.ring[(a.pos+i)%a.size])
	}
	return out
}

// analyseLocked runs the windowed FFT and folds it into the smoothed
// magnitudes.
func (a *Analyser) analyseLocked() {
	x := a.snapshotLocked()
	for i := range x {
		x[i] *= a.window[i]
	}
	bins := fft.FFTReal(x)
	n := float64(a.size)
	tau := a.smoothing
	for k := range a.smoothed {
		mag := cmplx.Abs(bins[k]) / n
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag
	}
}

// FloatFrequencyData returns the smoothed spectrum in dB. Silent bins are
// -Inf.
func (a *Analyser) FloatFrequencyData() []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyseLocked()
	out := make([]float32, len(a.smoothed))
	for k, m := range a.smoothed {
		out[k] = float32(toDecibels(m))
	}
	return out
}

// ByteFrequencyData returns the smoothed spectrum scaled from
// [MinDecibels, MaxDecibels] onto [0, 255].
func (a *Analyser) ByteFrequencyData() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyseLocked()
	return a.bytesLocked()
}

func (a *Analyser) bytesLocked() []byte {
	out := make([]byte, len(a.smoothed))
	scale := 255 / (MaxDecibels - MinDecibels)
	for k, m := range a.smoothed {
		db := toDecibels(m)
		v := math.Floor(scale * (db - MinDecibels))
		switch {
		case math.IsNaN(v) || v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		out[k] = byte(v)
	}
	return out
}

// ByteTimeDomainData returns the current window with 128 as silence.
func (a *Analyser) ByteTimeDomainData() []byte {
	a.mu.Lock()
	x := a.snapshotLocked()
	a.mu.Unlock()
	out := make([]byte, len(x))
	for i, s := range x {
		v := math.Floor(128 * (1 + s))
		out[i] = byte(math.Max(0, math.Min(255, v)))
	}
	return out
}

// Bars groups the byte spectrum into n equal runs of bins and returns each
// run's mean scaled to [0, 1]. Trailing bins that do not fill a run are
// ignored.
func (a *Analyser) Bars(n int) []float64 {
	if n <= 0 {
		return nil
	}
	data := a.ByteFrequencyData()
	step := len(data) / n
	out := make([]float64, n)
	if step == 0 {
		return out
	}
	for i := range out {
		sum := 0
		for j := 0; j < step; j++ {
			sum += int(data[i*step+j])
		}
		out[i] = float64(sum) / float64(step) / 255
	}
	return out
}

// Level returns the RMS of the current window.
func (a *Analyser) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var sum float64
	for _, s := range a.ring {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(a.size))
}

func toDecibels(mag float64) float64 {
	if mag <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(mag)
}
