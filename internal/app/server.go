package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/klvl/alynappi/internal/api/handlers"
	appMiddleware "github.com/klvl/alynappi/internal/api/middlewares"
	"github.com/klvl/alynappi/internal/config"
	"github.com/klvl/alynappi/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db handlers.Pinger, chat *services.ChatService, docs *services.DocumentService) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg.AllowedOrigins, db, chat, docs),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// NewRouter returns the chi router. The upload route exists only when docs can archive uploads.
func NewRouter(allowedOrigins []string, db handlers.Pinger, chat handlers.ChatStreamer, docs *services.DocumentService) http.Handler {
	chatHandler := handlers.NewChatHandler(chat)
	docHandler := handlers.NewDocumentHandler(docs)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handlers.Health(db))

	r.Route("/api", func(api chi.Router) {
		// streaming; bounded by the request context instead of a timeout
		api.Post("/chat", chatHandler.Chat)

		api.Group(func(bounded chi.Router) {
			bounded.Use(middleware.Timeout(60 * time.Second))
			bounded.Get("/documents", docHandler.GetDocuments)
			if docs.UploadsEnabled() {
				bounded.Post("/documents/upload", docHandler.UploadDocument)
			}
		})
	})

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
