package preset

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SharedName is used when a share code carries no name.
const SharedName = "Shared Preset"

// sharePayload uses short keys to keep links compact.
type sharePayload struct {
	Name     string         `json:"n"`
	Channel1 ChannelSetting `json:"c1"`
	Channel2 ChannelSetting `json:"c2"`
	Channel3 ChannelSetting `json:"c3"`
	VisOn    bool           `json:"ve"`
	VisAlpha float64        `json:"vo"`
}

// EncodeShare packs p into a URL-safe, unpadded base64 code. ID and creation
// time are not carried.
func EncodeShare(p Preset) (string, error) {
	data, err := json.Marshal(sharePayload{
		Name:     p.Name,
		Channel1: p.Channel1,
		Channel2: p.Channel2,
		Channel3: p.Channel3,
		VisOn:    p.VisualizerEnabled,
		VisAlpha: p.VisualizerOpacity,
	})
	if err != nil {
		return "", fmt.Errorf("encode share payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeShare unpacks a code from EncodeShare. Padded codes are accepted.
// The result gets a fresh "shared-" ID stamped with now.
func DecodeShare(code string, now time.Time) (Preset, error) {
	code = strings.TrimRight(strings.TrimSpace(code), "=")
	if code == "" {
		return Preset{}, fmt.Errorf("%w: empty share code", ErrInvalid)
	}
	data, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return Preset{}, fmt.Errorf("%w: share code is not base64: %v", ErrInvalid, err)
	}
	var sp sharePayload
	if err := json.Unmarshal(data, &sp); err != nil {
		return Preset{}, fmt.Errorf("%w: share payload: %v", ErrInvalid, err)
	}
	name := sp.Name
	if strings.TrimSpace(name) == "" {
		name = SharedName
	}
	p := Preset{
		ID:                "shared-" + strconv.FormatInt(now.UnixMilli(), 10),
		Name:              name,
		Channel1:          sp.Channel1,
		Channel2:          sp.Channel2,
		Channel3:          sp.Channel3,
		VisualizerEnabled: sp.VisOn,
		VisualizerOpacity: sp.VisAlpha,
		CreatedAt:         now.UTC(),
	}
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}
