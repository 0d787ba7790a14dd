package protocol

import "encoding/json"

// Message types used by the websocket protocol.
const (
	TypeState     = "state"
	TypeSpectrum  = "spectrum"
	TypeSubscribe = "subscribe"
	TypeGetState  = "get_state"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeError     = "error"
)

// MaxBars caps the bar count a client may subscribe to.
const MaxBars = 512

// Message is the JSON envelope exchanged over websocket.
type Message struct {
	Type  string          `json:"type"`
	Bars  []float64       `json:"bars,omitempty"`
	Count int             `json:"count,omitempty"`
	Level float64         `json:"level,omitempty"`
	State json.RawMessage `json:"state,omitempty"`
	TS    int64           `json:"ts,omitempty"`
	Error string          `json:"error,omitempty"`
}
