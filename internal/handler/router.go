package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authhandler "github.com/ermakartekovec-star/E-Genius5-AI/internal/handler/auth"
	chathandler "github.com/ermakartekovec-star/E-Genius5-AI/internal/handler/chat"
	"github.com/ermakartekovec-star/E-Genius5-AI/internal/handler/stream"
	middlewarePkg "github.com/ermakartekovec-star/E-Genius5-AI/internal/middleware"
	authservice "github.com/ermakartekovec-star/E-Genius5-AI/internal/service/auth"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(authSvc *authservice.Service, engine chathandler.Engine, hub *stream.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	authHandler := authhandler.New(authSvc)
	chatHandler := chathandler.New(engine)
	streamHandler := stream.New(hub)

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(authHandler.Middleware)
			chatHandler.RegisterRoutes(protected)
			streamHandler.RegisterRoutes(protected)
		})
	})

	return r
}
