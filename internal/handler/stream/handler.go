// Package stream pushes live chat events to presentation clients over SSE or
// WebSocket. The Hub implements the sync engine's listener and fans events
// out to every connected subscriber.
package stream

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatmodel "github.com/ermakartekovec-star/E-Genius5-AI/internal/model/chat"
	"github.com/ermakartekovec-star/E-Genius5-AI/pkg/utils"
)

// Event is one live update.
type Event struct {
	Type    string             `json:"type"`
	Message *chatmodel.Message `json:"message,omitempty"`
	Count   int                `json:"count,omitempty"`
	Limit   int                `json:"limit,omitempty"`
	Error   string             `json:"error,omitempty"`
}

const subscriberBuffer = 16

// Hub fans sync engine events out to stream subscribers. A subscriber that
// cannot keep up loses events rather than stalling the send path; the client
// reconciles through GET /messages.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// MessageAppended implements sync.Listener.
func (h *Hub) MessageAppended(msg chatmodel.Message) {
	h.broadcast(Event{Type: "message", Message: &msg})
}

// LimitReached implements sync.Listener.
func (h *Hub) LimitReached(count, limit int) {
	h.broadcast(Event{Type: "limit", Count: count, Limit: limit})
}

// SendFailed implements sync.Listener.
func (h *Hub) SendFailed(err error) {
	h.broadcast(Event{Type: "error", Error: err.Error()})
}

// Subscribe returns a channel of events and a cancel func that must be called
// when the subscriber goes away.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Handler serves the SSE and WebSocket feeds.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// New creates the stream handler over the given hub.
func New(hub *Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the stream routes. The caller wraps them in the
// auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleSSE)
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	events, cancel := h.hub.Subscribe()
	defer cancel()

	utils.SendSSEChunk(w, flusher, Event{Type: "status"})

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			utils.SendSSEEvent(w, flusher, ev.Type, ev)
		}
	}
}

const (
	wsWriteWait = 10 * time.Second
	wsPingEvery = 30 * time.Second
)

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stream] ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	// Reader goroutine: we never expect client frames, but reading is what
	// surfaces the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("[stream] ws write: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
