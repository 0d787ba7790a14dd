package noise

import (
	"fmt"
	"math"
)

const (
	// BinauralBase is the carrier frequency of both binaural presets, in Hz.
	BinauralBase = 200.0
	// AlphaBeat is the beat frequency of the alpha preset, in Hz.
	AlphaBeat = 10.0
	// ThetaBeat is the beat frequency of the theta preset, in Hz.
	ThetaBeat = 6.0

	binauralAmp = 0.3

	pinkScale  = 0.11
	brownScale = 3.5
)

// Generate synthesises seconds of audio for st at sampleRate using src.
func Generate(st SoundType, sampleRate int, seconds float64, src Source) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if seconds <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %v", seconds)
	}
	if src == nil {
		src = NewRandomSource()
	}
	frames := int(float64(sampleRate) * seconds)

	switch st {
	case WhiteNoise:
		return White(sampleRate, frames, src), nil
	case PinkNoise:
		return Pink(sampleRate, frames, src), nil
	case BrownNoise:
		return Brown(sampleRate, frames, src), nil
	case BinauralAlpha:
		return Binaural(sampleRate, frames, BinauralBase, AlphaBeat), nil
	case BinauralTheta:
		return Binaural(sampleRate, frames, BinauralBase, ThetaBeat), nil
	case OceanWaves:
		return Ocean(sampleRate, frames, src), nil
	case Rain:
		return RainFall(sampleRate, frames, src), nil
	case Thunderstorm:
		return Storm(sampleRate, frames, src), nil
	case Campfire:
		return Fire(sampleRate, frames, src), nil
	default:
		return nil, fmt.Errorf("%w: no generator for %s", ErrUnknownSound, st)
	}
}

// pinkFilter is Paul Kellet's economy pink noise filter.
type pinkFilter struct {
	b0, b1, b2, b3, b4, b5, b6 float64
	// holdB6 keeps the delayed b6 tap at zero, matching the rain texture.
	holdB6 bool
}

func (p *pinkFilter) next(white float64) float64 {
	p.b0 = 0.99886*p.b0 + white*0.0555179
	p.b1 = 0.99332*p.b1 + white*0.0750759
	p.b2 = 0.96900*p.b2 + white*0.1538520
	p.b3 = 0.86650*p.b3 + white*0.3104856
	p.b4 = 0.55000*p.b4 + white*0.5329522
	p.b5 = -0.7616*p.b5 - white*0.0168980
	out := p.b0 + p.b1 + p.b2 + p.b3 + p.b4 + p.b5 + p.b6 + white*0.5362
	if !p.holdB6 {
		p.b6 = white * 0.115926
	}
	return out
}

// brownWalk is a leaky random walk: last = (last + step*white) / (1 + step).
type brownWalk struct {
	step float64
	last float64
}

func (b *brownWalk) next(white float64) float64 {
	b.last = (b.last + b.step*white) / (1 + b.step)
	return b.last
}

// White fills a mono buffer with uniform noise in [-1, 1).
func White(sampleRate, frames int, src Source) *Buffer {
	buf := newBuffer(sampleRate, 1, frames)
	data := buf.data[0]
	for i := range data {
		data[i] = float32(src.Next())
	}
	return buf
}

// Pink fills a mono buffer with -3 dB/octave noise.
func Pink(sampleRate, frames int, src Source) *Buffer {
	buf := newBuffer(sampleRate, 1, frames)
	data := buf.data[0]
	var f pinkFilter
	for i := range data {
		data[i] = float32(f.next(src.Next()) * pinkScale)
	}
	return buf
}

// Brown fills a mono buffer with -6 dB/octave noise.
func Brown(sampleRate, frames int, src Source) *Buffer {
	buf := newBuffer(sampleRate, 1, frames)
	data := buf.data[0]
	w := brownWalk{step: 0.02}
	for i := range data {
		data[i] = float32(w.next(src.Next()) * brownScale)
	}
	return buf
}

// Binaural writes base Hz on the left channel and base+beat Hz on the right.
func Binaural(sampleRate, frames int, base, beat float64) *Buffer {
	buf := newBuffer(sampleRate, 2, frames)
	left, right := buf.data[0], buf.data[1]
	sr := float64(sampleRate)
	for i := range left {
		t := float64(i) / sr
		left[i] = float32(math.Sin(2*math.Pi*base*t) * binauralAmp)
		right[i] = float32(math.Sin(2*math.Pi*(base+beat)*t) * binauralAmp)
	}
	return buf
}

// Ocean modulates slow brown noise with two low-frequency swell envelopes.
func Ocean(sampleRate, frames int, src Source) *Buffer {
	buf := newBuffer(sampleRate, 2, frames)
	sr := float64(sampleRate)
	for ch, data := range buf.data {
		w := brownWalk{step: 0.01}
		phase := float64(ch) * 0.5
		for i := range data {
			t := float64(i) / sr
			wave1 := math.Sin(2 * math.Pi * 0.15 * t)
			wave2 := math.Sin(2*math.Pi*0.22*t + phase)
			b := w.next(src.Next())
			envelope := (wave1+wave2)*0.3 + 0.7
			data[i] = float32((b*envelope + wave1*0.2) * 0.4)
		}
	}
	return buf
}

// RainFall is independent pink noise per channel with a slow 20 s swell.
func RainFall(sampleRate, frames int, src Source) *Buffer {
	buf := newBuffer(sampleRate, 2, frames)
	sr := float64(sampleRate)
	for _, data := range buf.data {
		f := pinkFilter{holdB6: true}
		for i := range data {
			t := float64(i) / sr
			pink := f.next(src.Next())
			intensity := 0.8 + math.Sin(2*math.Pi*0.05*t)*0.2
			data[i] = float32(pink * intensity * 0.15)
		}
	}
	return buf
}

// ThunderOnsets returns the burst start times, in seconds, for a storm of
// the given length. The first burst lands at 5 s and gaps are 8-18 s.
func ThunderOnsets(seconds float64, src Source) []float64 {
	var onsets []float64
	for t := 5.0; t < seconds; t += 8 + uniform(src)*10 {
		onsets = append(onsets, t)
	}
	return onsets
}

// Storm layers rain with decaying brown-noise thunder bursts. Both channels
// share the same onsets.
func Storm(sampleRate, frames int, src Source) *Buffer {
	buf := newBuffer(sampleRate, 2, frames)
	sr := float64(sampleRate)
	onsets := ThunderOnsets(float64(frames)/sr, src)
	for _, data := range buf.data {
		f := pinkFilter{holdB6: true}
		w := brownWalk{step: 0.02}
		for i := range data {
			t := float64(i) / sr
			white := src.Next()
			rain := f.next(white)
			b := w.next(white)

			thunder := 0.0
			for _, at := range onsets {
				if dt := t - at; dt > 0 && dt < 3 {
					thunder += b * math.Exp(-dt*1.5)
				}
			}
			data[i] = float32((rain*0.12 + thunder*0.3) * 1.2)
		}
	}
	return buf
}

// popChance is the per-sample probability of a campfire pop.
const popChance = 0.003

// Fire is brown crackle plus sparse pops and a 30 Hz rumble under a 2 Hz
// flicker that is phase shifted per channel.
func Fire(sampleRate, frames int, src Source) *Buffer {
	buf := newBuffer(sampleRate, 2, frames)
	sr := float64(sampleRate)
	for ch, data := range buf.data {
		w := brownWalk{step: 0.03}
		for i := range data {
			t := float64(i) / sr
			b := w.next(src.Next())

			pop := 0.0
			if uniform(src) < popChance {
				pop = src.Next()
			}
			// Fresh phase every sample keeps the rumble from reading as a tone.
			rumble := math.Sin(2*math.Pi*30*t+uniform(src)) * 0.1
			flicker := 0.7 + math.Sin(2*math.Pi*2*t+float64(ch))*0.3
			data[i] = float32((b*0.3 + pop*0.5 + rumble) * flicker * 0.25)
		}
	}
	return buf
}
