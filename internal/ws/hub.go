package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ambimix/internal/protocol"
)

// SendTimeout bounds how long a write to one subscriber may block.
const SendTimeout = 50 * time.Millisecond

// Session is one connected websocket listener.
type Session struct {
	ID   string
	Send chan protocol.Message
}

type listener struct {
	bars int
	send chan protocol.Message
}

// Hub tracks connected listeners and fans messages out to them.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]*listener
	nextID    atomic.Uint64
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[string]*listener)}
}

// Add registers a listener that wants bars spectrum bars per frame.
func (h *Hub) Add(bars, sendBuf int) *Session {
	if sendBuf <= 0 {
		sendBuf = 16
	}
	id := fmt.Sprintf("l%d", h.nextID.Add(1))
	l := &listener{bars: bars, send: make(chan protocol.Message, sendBuf)}

	h.mu.Lock()
	h.listeners[id] = l
	count := len(h.listeners)
	h.mu.Unlock()

	slog.Info("listener added", "id", id, "bars", bars, "total", count)
	return &Session{ID: id, Send: l.send}
}

// Remove unregisters a listener and closes its send channel.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.listeners[id]
	if !ok {
		return false
	}
	delete(h.listeners, id)
	close(l.send)
	slog.Info("listener removed", "id", id, "remaining", len(h.listeners))
	return true
}

// SetBars changes the bar count for one listener.
func (h *Hub) SetBars(id string, bars int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.listeners[id]
	if ok {
		l.bars = bars
	}
	return ok
}

// ClientCount returns the number of connected listeners.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// SendTo sends one message to one listener.
func (h *Hub) SendTo(id string, msg protocol.Message) bool {
	h.mu.RLock()
	l, ok := h.listeners[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return trySend(l.send, msg)
}

// Broadcast sends msg to every listener.
func (h *Hub) Broadcast(msg protocol.Message) {
	h.mu.RLock()
	targets := make([]chan protocol.Message, 0, len(h.listeners))
	for _, l := range h.listeners {
		targets = append(targets, l.send)
	}
	h.mu.RUnlock()

	sent := 0
	for _, ch := range targets {
		if trySend(ch, msg) {
			sent++
		}
	}
	slog.Debug("broadcast", "type", msg.Type, "recipients", sent, "total", len(targets))
}

// BroadcastFrames builds one message per distinct bar count with frame and
// delivers it to the listeners that asked for that count. frame returning
// false skips those listeners.
func (h *Hub) BroadcastFrames(frame func(bars int) (protocol.Message, bool)) {
	h.mu.RLock()
	groups := make(map[int][]chan protocol.Message)
	for _, l := range h.listeners {
		groups[l.bars] = append(groups[l.bars], l.send)
	}
	h.mu.RUnlock()

	for bars, targets := range groups {
		msg, ok := frame(bars)
		if !ok {
			continue
		}
		for _, ch := range targets {
			offer(ch, msg)
		}
	}
}

// offer delivers msg only if ch has room. Frames are disposable.
func offer(ch chan protocol.Message, msg protocol.Message) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}

func trySend(ch chan protocol.Message, msg protocol.Message) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case ch <- msg:
		return true
	case <-time.After(SendTimeout):
		slog.Debug("trySend timeout", "type", msg.Type)
		return false
	}
}
