// Package preset defines saved mixer configurations, the built-in defaults
// and the compact share-code format used in links.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ambimix/internal/noise"

	"github.com/google/uuid"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid preset")

// ChannelSetting is the saved state of one mixer channel.
type ChannelSetting struct {
	Sound  noise.SoundType `json:"sound"`
	Volume float64         `json:"volume"`
	Muted  bool            `json:"muted"`
}

// Preset is a named snapshot of all three channels plus visualizer settings.
type Preset struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Channel1          ChannelSetting `json:"channel1"`
	Channel2          ChannelSetting `json:"channel2"`
	Channel3          ChannelSetting `json:"channel3"`
	VisualizerEnabled bool           `json:"visualizerEnabled"`
	VisualizerOpacity float64        `json:"visualizerOpacity"`
	CreatedAt         time.Time      `json:"createdAt"`
}

// Channels returns the channel settings in channel order.
func (p Preset) Channels() [3]ChannelSetting {
	return [3]ChannelSetting{p.Channel1, p.Channel2, p.Channel3}
}

// Validate checks ranges and required fields.
func (p Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	for i, cs := range p.Channels() {
		if !cs.Sound.Valid() {
			return fmt.Errorf("%w: channel %d: unknown sound", ErrInvalid, i+1)
		}
		if cs.Volume < 0 || cs.Volume > 100 {
			return fmt.Errorf("%w: channel %d: volume %v outside 0-100", ErrInvalid, i+1, cs.Volume)
		}
	}
	if p.VisualizerOpacity < 0 || p.VisualizerOpacity > 100 {
		return fmt.Errorf("%w: visualizer opacity %v outside 0-100", ErrInvalid, p.VisualizerOpacity)
	}
	return nil
}

// NewID returns a fresh identifier for a user preset.
func NewID() string {
	return "preset-" + uuid.NewString()
}

var defaultIDs = map[string]bool{
	"deep-work":    true,
	"calm-focus":   true,
	"meditation":   true,
	"energy-boost": true,
}

// IsDefault reports whether id names a built-in preset. Built-ins are
// read-only.
func IsDefault(id string) bool {
	return defaultIDs[id]
}

// Defaults returns the built-in presets.
func Defaults() []Preset {
	off := ChannelSetting{Sound: noise.None, Volume: 0, Muted: true}
	return []Preset{
		{
			ID:                "deep-work",
			Name:              "Deep Work",
			Channel1:          ChannelSetting{Sound: noise.BrownNoise, Volume: 80},
			Channel2:          ChannelSetting{Sound: noise.None, Volume: 20},
			Channel3:          off,
			VisualizerEnabled: true,
			VisualizerOpacity: 30,
		},
		{
			ID:                "calm-focus",
			Name:              "Calm Focus",
			Channel1:          ChannelSetting{Sound: noise.PinkNoise, Volume: 40},
			Channel2:          ChannelSetting{Sound: noise.BinauralAlpha, Volume: 50},
			Channel3:          off,
			VisualizerEnabled: true,
			VisualizerOpacity: 20,
		},
		{
			ID:                "meditation",
			Name:              "Meditation",
			Channel1:          ChannelSetting{Sound: noise.PinkNoise, Volume: 30},
			Channel2:          ChannelSetting{Sound: noise.BinauralTheta, Volume: 60},
			Channel3:          off,
			VisualizerEnabled: true,
			VisualizerOpacity: 15,
		},
		{
			ID:                "energy-boost",
			Name:              "Energy Boost",
			Channel1:          ChannelSetting{Sound: noise.WhiteNoise, Volume: 50},
			Channel2:          ChannelSetting{Sound: noise.BinauralAlpha, Volume: 70},
			Channel3:          off,
			VisualizerEnabled: true,
			VisualizerOpacity: 40,
		},
	}
}

// Export renders presets as an indented JSON array.
func Export(ps []Preset) ([]byte, error) {
	if ps == nil {
		ps = []Preset{}
	}
	return json.MarshalIndent(ps, "", "  ")
}

// ParseImport decodes a JSON array produced by Export and validates each
// entry.
func ParseImport(data []byte) ([]Preset, error) {
	var ps []Preset
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("%w: decode import: %v", ErrInvalid, err)
	}
	for i, p := range ps {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return ps, nil
}
