package mixer

import (
	"errors"
	"fmt"

	"ambimix/internal/noise"
)

// ChannelState is the playback state of one channel.
type ChannelState int

const (
	// Idle has no sound loaded.
	Idle ChannelState = iota
	// Bound has a sound loaded but is not producing output.
	Bound
	// Playing is producing output.
	Playing
)

func (s ChannelState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Bound:
		return "bound"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name.
func (s ChannelState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *ChannelState) UnmarshalText(text []byte) error {
	for _, st := range []ChannelState{Idle, Bound, Playing} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown channel state %q", text)
}

// ErrVoiceSpent is returned when starting a voice that has already run.
var ErrVoiceSpent = errors.New("voice already used")

// voice is a one-shot looping read head over a shared buffer. Once stopped
// it cannot be started again; playback needs a fresh voice.
type voice struct {
	buf     *noise.Buffer
	pos     int
	started bool
	stopped bool
}

func newVoice(buf *noise.Buffer) *voice {
	return &voice{buf: buf}
}

func (v *voice) start() error {
	if v.started || v.stopped {
		return ErrVoiceSpent
	}
	v.started = true
	return nil
}

func (v *voice) stop() {
	v.stopped = true
}

func (v *voice) spent() bool {
	return v.started || v.stopped
}

func (v *voice) active() bool {
	return v.started && !v.stopped
}

// mix adds gain-scaled samples into out and advances the read head, wrapping
// at the end of the buffer.
func (v *voice) mix(out [][]float32, gain float32) {
	frames := v.buf.Frames()
	if len(out) == 0 || frames == 0 {
		return
	}
	if gain == 0 {
		v.pos = (v.pos + len(out[0])) % frames
		return
	}
	for i := range out[0] {
		for ch := range out {
			out[ch][i] += v.buf.Sample(ch, v.pos) * gain
		}
		v.pos++
		if v.pos == frames {
			v.pos = 0
		}
	}
}

// Channel is one mixer slot. All fields are guarded by the owning Engine.
type Channel struct {
	id      int
	sound   noise.SoundType
	gain    float64
	volume  float64
	muted   bool
	playing bool
	voice   *voice
}

func newChannel(id int) *Channel {
	return &Channel{id: id, gain: DefaultChannelGain, volume: -1}
}

func (c *Channel) state() ChannelState {
	switch {
	case c.voice == nil:
		return Idle
	case c.playing:
		return Playing
	default:
		return Bound
	}
}

// discard stops and unbinds the current voice.
func (c *Channel) discard() {
	if c.voice != nil {
		c.voice.stop()
		c.voice = nil
	}
}

func (c *Channel) snapshot() ChannelSnapshot {
	return ChannelSnapshot{
		ID:      c.id,
		Sound:   c.sound,
		Gain:    c.gain,
		Volume:  c.volume,
		Muted:   c.muted,
		Playing: c.playing,
		State:   c.state(),
	}
}

// ChannelSnapshot is a read-only view of one channel.
type ChannelSnapshot struct {
	ID    int             `json:"id"`
	Sound noise.SoundType `json:"sound"`
	Gain  float64         `json:"gain"`
	// Volume is the last slider value, or -1 when none was set.
	Volume  float64      `json:"volume"`
	Muted   bool         `json:"muted"`
	Playing bool         `json:"playing"`
	State   ChannelState `json:"state"`
}
