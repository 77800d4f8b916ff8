package server

import (
	"sync"

	"github.com/oszuidwest/zwfm-recorder/internal/screen"
	"github.com/oszuidwest/zwfm-recorder/internal/types"
)

// Hub fans rendered screen frames out to connected WebSocket clients. It
// implements screen.Display.
// It is safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	clients map[chan<- any]struct{}
	last    screen.Frame
	hasLast bool
}

// NewHub returns a hub without clients.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan<- any]struct{})}
}

// Render implements screen.Display. Slow clients miss frames instead of
// blocking the recording loop.
func (h *Hub) Render(f screen.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last, h.hasLast = f, true
	msg := types.WSScreenResponse{Type: "screen", Screen: f}
	for send := range h.clients {
		trySend(send, "screen", msg)
	}
}

// Register adds a client and sends it the latest frame.
func (h *Hub) Register(send chan<- any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[send] = struct{}{}
	if h.hasLast {
		trySend(send, "screen", types.WSScreenResponse{Type: "screen", Screen: h.last})
	}
}

// Unregister removes a client. The caller may close send afterwards.
func (h *Hub) Unregister(send chan<- any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, send)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Last returns the most recent frame.
func (h *Hub) Last() (screen.Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.hasLast
}

// Recording reports whether the latest frame shows an open take.
func (h *Hub) Recording() bool {
	f, ok := h.Last()
	return ok && f.Status.Status.Recording()
}
