package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragdesk/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/ragdesk/internal/api/middlewares"
	"github.com/markdave123-py/ragdesk/internal/config"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, log *zap.Logger, a *App) *Server {
	authHandler := handlers.NewAuthHandler(a.Users, cfg.JWTSecret)
	docHandler := handlers.NewDocumentHandler(a.Documents, a.Ingestor, a.Queue)
	chatHandler := handlers.NewChatHandler(a.Retrieval)
	settingsHandler := handlers.NewSettingsHandler(a.Users)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Post("/files/upload", docHandler.UploadDocument)
			protected.Get("/files", docHandler.GetDocuments)
			protected.Get("/files/{fileID}", docHandler.GetDocument)
			protected.Delete("/files/{fileID}", docHandler.DeleteDocument)
			protected.Post("/files/{fileID}/ingest", docHandler.IngestDocument)

			protected.Post("/chat/query", chatHandler.QueryDocument)

			protected.Get("/settings", settingsHandler.GetSettings)
			protected.Put("/settings", settingsHandler.PutSettings)
		})
	})

	return &Server{
		httpServer: &http.Server{Addr: ":" + cfg.Port, Handler: r},
		log:        log,
	}
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
