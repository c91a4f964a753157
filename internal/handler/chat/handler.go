package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authhandler "github.com/ermakartekovec-star/E-Genius5-AI/internal/handler/auth"
	chatmodel "github.com/ermakartekovec-star/E-Genius5-AI/internal/model/chat"
	"github.com/ermakartekovec-star/E-Genius5-AI/pkg/utils"
)

// Engine is the slice of the sync session the HTTP surface needs.
type Engine interface {
	Messages() []chatmodel.Message
	Usage() (count, limit int)
	Send(ctx context.Context, sender, text string)
}

// Handler exposes the transcript and the send path.
type Handler struct {
	engine Engine
}

// New creates the chat handler.
func New(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes registers the chat routes. The caller wraps them in the
// auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messages", h.handleListMessages)
	r.Post("/messages", h.handleSendMessage)
	r.Get("/stats", h.handleStats)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages := h.engine.Messages()
	if messages == nil {
		messages = []chatmodel.Message{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	role, ok := authhandler.RoleFromContext(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "login required")
		return
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	// Send runs to completion here, including the AI turn for the deputy,
	// but reports nothing back: a send in flight drops this one silently,
	// and the client observes every outcome through the live stream.
	h.engine.Send(r.Context(), role, payload.Content)
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	count, limit := h.engine.Usage()
	utils.RespondJSON(w, http.StatusOK, map[string]int{
		"ai_requests": count,
		"daily_limit": limit,
	})
}
