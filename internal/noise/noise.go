// Package noise synthesises the looping ambient buffers played by the mixer.
//
// Every generator fills a fixed-length buffer procedurally from a random
// Source. Output is deterministic only in statistical character: two calls
// with different sources sound alike but share no samples.
package noise

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultDuration is the loop length requested by the mixer, in seconds.
const DefaultDuration = 30

// SoundType identifies one generator. The zero value is None.
type SoundType int

const (
	None SoundType = iota
	BrownNoise
	PinkNoise
	WhiteNoise
	BinauralAlpha
	BinauralTheta
	OceanWaves
	Rain
	Thunderstorm
	Campfire
)

var soundNames = [...]string{
	None:          "None",
	BrownNoise:    "Brown Noise",
	PinkNoise:     "Pink Noise",
	WhiteNoise:    "White Noise",
	BinauralAlpha: "Binaural Beat (Alpha)",
	BinauralTheta: "Binaural Beat (Theta)",
	OceanWaves:    "Ocean Waves",
	Rain:          "Rain",
	Thunderstorm:  "Thunderstorm",
	Campfire:      "Campfire",
}

// ErrUnknownSound is returned when a name or value does not map to a SoundType.
var ErrUnknownSound = errors.New("unknown sound type")

// All returns every SoundType in display order, None first.
func All() []SoundType {
	out := make([]SoundType, 0, len(soundNames))
	for st := range soundNames {
		out = append(out, SoundType(st))
	}
	return out
}

// Playable returns every SoundType that has a generator.
func Playable() []SoundType {
	return All()[1:]
}

// Valid reports whether st is a known SoundType.
func (st SoundType) Valid() bool {
	return st >= None && int(st) < len(soundNames)
}

func (st SoundType) String() string {
	if !st.Valid() {
		return fmt.Sprintf("SoundType(%d)", int(st))
	}
	return soundNames[st]
}

// ParseSoundType maps a display name back to its SoundType.
func ParseSoundType(name string) (SoundType, error) {
	for i, n := range soundNames {
		if n == name {
			return SoundType(i), nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownSound, name)
}

// MarshalText encodes the display name, which is also the preset wire form.
func (st SoundType) MarshalText() ([]byte, error) {
	if !st.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSound, int(st))
	}
	return []byte(soundNames[st]), nil
}

// UnmarshalText accepts a display name.
func (st *SoundType) UnmarshalText(text []byte) error {
	parsed, err := ParseSoundType(string(text))
	if err != nil {
		return err
	}
	*st = parsed
	return nil
}

// Source yields uniformly distributed values in [-1, 1).
type Source interface {
	Next() float64
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func() float64

// Next calls f.
func (f SourceFunc) Next() float64 { return f() }

type pcgSource struct {
	r *rand.Rand
}

func (s *pcgSource) Next() float64 { return s.r.Float64()*2 - 1 }

// NewSource returns a reproducible Source for seed. It is not safe for
// concurrent use.
func NewSource(seed uint64) Source {
	return &pcgSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomSource returns a Source seeded from the wall clock.
func NewRandomSource() Source {
	return NewSource(uint64(time.Now().UnixNano()))
}

// uniform maps a Source draw onto [0, 1).
func uniform(src Source) float64 {
	return (src.Next() + 1) / 2
}

// Buffer is an immutable block of float32 PCM, one slice per output channel.
type Buffer struct {
	sampleRate int
	data       [][]float32
}

func newBuffer(sampleRate, channels, frames int) *Buffer {
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, frames)
	}
	return &Buffer{sampleRate: sampleRate, data: data}
}

// SampleRate returns the rate the buffer was generated at.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Channels returns 1 for mono and 2 for stereo buffers.
func (b *Buffer) Channels() int { return len(b.data) }

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.data) == 0 {
		return 0
	}
	return len(b.data[0])
}

// Duration returns the playback length of one loop.
func (b *Buffer) Duration() time.Duration {
	if b.sampleRate == 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.sampleRate)
}

// Channel returns the samples of channel ch. Callers must not modify them.
func (b *Buffer) Channel(ch int) []float32 {
	return b.data[ch]
}

// Sample returns the value at frame i for output channel ch. Mono buffers
// feed every output channel.
func (b *Buffer) Sample(ch, i int) float32 {
	if ch >= len(b.data) {
		ch = len(b.data) - 1
	}
	return b.data[ch][i]
}
