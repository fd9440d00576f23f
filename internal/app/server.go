package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/guardian/internal/api/handlers"
	"github.com/markdave123-py/guardian/internal/config"
	"github.com/markdave123-py/guardian/internal/logger"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewRouter builds and wires all routes.
func NewRouter(cfg *config.Config, log *logger.Logger, svcs *Services) http.Handler {
	sessionHandler := handlers.NewSessionHandler(svcs.Sessions, svcs.Guardian, svcs.Tokens, log)
	leaderboardHandler := handlers.NewLeaderboardHandler(svcs.Leaderboard, svcs.Tokens, log)
	chatHandler := handlers.NewChatHandler(svcs.Guardian, log)
	ttsHandler := handlers.NewTTSHandler(svcs.Speech, log)
	healthHandler := handlers.NewHealthHandler(svcs.Mode)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", healthHandler.Health)

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/session", sessionHandler.Create)
		api.Get("/session", sessionHandler.Get)
		api.Get("/session/{id}", sessionHandler.Get)
		api.Get("/leaderboard", leaderboardHandler.List)
		api.Post("/chat", chatHandler.Chat)
		api.Post("/tts", ttsHandler.Speak)

		// session-bound endpoints; open when no token secret is configured
		api.Group(func(protected chi.Router) {
			protected.Use(svcs.Tokens.Middleware)
			protected.Put("/session", sessionHandler.Update)
			protected.Post("/session/{id}/finalize", sessionHandler.Finalize)
			protected.Post("/leaderboard", leaderboardHandler.Submit)
		})
	})

	return r
}

func NewServer(cfg *config.Config, log *logger.Logger, svcs *Services) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, log, svcs),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
