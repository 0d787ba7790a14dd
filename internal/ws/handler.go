// Package ws streams spectrum frames and mixer state to browser listeners.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ambimix/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeTimeout = 5 * time.Second
	// DefaultBars is used when a listener does not ask for a bar count.
	DefaultBars = 64
	sendBuf     = 16
)

// Feed supplies spectrum frames. ok is false while there is no audio to
// analyse.
type Feed interface {
	Spectrum(bars int) (values []float64, level float64, ok bool)
}

// StateFunc returns the value sent in state messages.
type StateFunc func() any

// Handler owns websocket transport for the spectrum feed.
type Handler struct {
	hub      *Hub
	feed     Feed
	state    StateFunc
	bars     int
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler bound to hub.
func NewHandler(hub *Hub, feed Feed, state StateFunc) *Handler {
	return &Handler{
		hub:   hub,
		feed:  feed,
		state: state,
		bars:  DefaultBars,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// SetDefaultBars changes the bar count used when a listener does not ask
// for one. Values outside 1..protocol.MaxBars are ignored.
func (h *Handler) SetDefaultBars(n int) {
	if n > 0 && n <= protocol.MaxBars {
		h.bars = n
	}
}

// Register binds websocket routes on an Echo router.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades one request and serves it until disconnect. The
// optional "bars" query parameter sets the initial bar count.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	bars := h.bars
	if q := c.QueryParam("bars"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > protocol.MaxBars {
			return echo.NewHTTPError(http.StatusBadRequest, "bars must be between 1 and "+strconv.Itoa(protocol.MaxBars))
		}
		bars = n
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	h.serveConn(conn, bars)
	return nil
}

func (h *Handler) serveConn(conn *websocket.Conn, bars int) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Time{})
	conn.SetReadLimit(1 << 16)

	session := h.hub.Add(bars, sendBuf)
	defer h.hub.Remove(session.ID)

	go func() {
		for out := range session.Send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}()

	if msg, ok := h.stateMessage(); ok {
		h.hub.SendTo(session.ID, msg)
	}

	for {
		var in protocol.Message
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		h.handleInbound(session.ID, in)
	}
}

func (h *Handler) handleInbound(id string, in protocol.Message) {
	switch in.Type {
	case protocol.TypePing:
		h.hub.SendTo(id, protocol.Message{Type: protocol.TypePong, TS: in.TS})

	case protocol.TypeSubscribe:
		if in.Count <= 0 || in.Count > protocol.MaxBars {
			h.sendError(id, "count must be between 1 and "+strconv.Itoa(protocol.MaxBars))
			return
		}
		h.hub.SetBars(id, in.Count)

	case protocol.TypeGetState:
		if msg, ok := h.stateMessage(); ok {
			h.hub.SendTo(id, msg)
		}

	default:
		h.sendError(id, "unsupported message type")
	}
}

func (h *Handler) stateMessage() (protocol.Message, bool) {
	if h.state == nil {
		return protocol.Message{}, false
	}
	data, err := json.Marshal(h.state())
	if err != nil {
		slog.Warn("encode state", "err", err)
		return protocol.Message{}, false
	}
	return protocol.Message{Type: protocol.TypeState, State: data, TS: time.Now().UnixMilli()}, true
}

// PushState broadcasts the current state to every listener.
func (h *Handler) PushState() {
	if h.hub.ClientCount() == 0 {
		return
	}
	if msg, ok := h.stateMessage(); ok {
		h.hub.Broadcast(msg)
	}
}

// Stream pushes spectrum frames at fps until ctx is done.
func (h *Handler) Stream(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pushFrame()
		}
	}
}

func (h *Handler) pushFrame() {
	if h.feed == nil || h.hub.ClientCount() == 0 {
		return
	}
	ts := time.Now().UnixMilli()
	h.hub.BroadcastFrames(func(bars int) (protocol.Message, bool) {
		values, level, ok := h.feed.Spectrum(bars)
		if !ok {
			return protocol.Message{}, false
		}
		return protocol.Message{Type: protocol.TypeSpectrum, Bars: values, Level: level, TS: ts}, true
	})
}

func (h *Handler) sendError(id, errMsg string) {
	h.hub.SendTo(id, protocol.Message{Type: protocol.TypeError, Error: errMsg})
}
