package mixer

import "math"

// param is a gain value that can follow an exponential ramp advanced one
// sample at a time by the render loop.
type param struct {
	value     float64
	target    float64
	factor    float64
	remaining int
}

// set jumps to v and cancels any ramp.
func (p *param) set(v float64) {
	p.value = v
	p.target = v
	p.remaining = 0
}

// rampTo moves exponentially from the current value to target over samples.
// A zero start holds at zero, since an exponential curve cannot leave it.
func (p *param) rampTo(target float64, samples int) {
	if p.value <= 0 {
		return
	}
	if samples <= 0 || target <= 0 {
		p.set(target)
		return
	}
	p.target = target
	p.factor = math.Pow(target/p.value, 1/float64(samples))
	p.remaining = samples
}

func (p *param) ramping() bool {
	return p.remaining > 0
}

// next advances one sample and returns the value for it.
func (p *param) next() float64 {
	if p.remaining > 0 {
		p.value *= p.factor
		p.remaining--
		if p.remaining == 0 {
			p.value = p.target
		}
	}
	return p.value
}

func clampVolume(volume float64) float64 {
	if math.IsNaN(volume) {
		return 0
	}
	return math.Max(0, math.Min(100, volume))
}

// volumeToGain maps a 0-100 slider onto a squared gain curve.
func volumeToGain(volume float64) float64 {
	v := clampVolume(volume) / 100
	return v * v
}

// clampFloat32 clamps v to [-1.0, 1.0].
func clampFloat32(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
