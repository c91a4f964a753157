package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	authservice "github.com/ermakartekovec-star/E-Genius5-AI/internal/service/auth"
	"github.com/ermakartekovec-star/E-Genius5-AI/pkg/utils"
)

type contextKey string

const roleContextKey contextKey = "role"

// Handler exposes the login endpoint and the session-token middleware.
type Handler struct {
	authSvc *authservice.Service
}

// New creates the auth handler.
func New(authSvc *authservice.Service) *Handler {
	return &Handler{authSvc: authSvc}
}

// RegisterRoutes registers the public auth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role     string `json:"role"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.authSvc.Login(r.Context(), payload.Role, payload.Password)
	switch {
	case errors.Is(err, authservice.ErrInvalidRole):
		utils.RespondError(w, http.StatusBadRequest, "role must be deputy or staff")
		return
	case errors.Is(err, authservice.ErrWrongPassword):
		utils.RespondError(w, http.StatusUnauthorized, "wrong password")
		return
	case errors.Is(err, authservice.ErrConfigIncomplete):
		utils.RespondError(w, http.StatusServiceUnavailable, "fill in passwords in config.json on the remote store first")
		return
	case err != nil:
		utils.RespondError(w, http.StatusBadGateway, "remote store unavailable")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"token":  session.Token,
		"role":   session.Role,
		"expiry": session.Expiry.Format(time.RFC3339),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.authSvc.Logout(token)
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Middleware requires a valid session token and stashes the role in the
// request context.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			// WebSocket and EventSource clients cannot set headers; allow
			// the token as a query parameter for those endpoints.
			token = r.URL.Query().Get("token")
		}

		role, ok := h.authSvc.Validate(token)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "login required")
			return
		}

		ctx := context.WithValue(r.Context(), roleContextKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RoleFromContext returns the authenticated role set by Middleware.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey).(string)
	return role, ok && role != ""
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
