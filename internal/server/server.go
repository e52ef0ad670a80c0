package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/michaelbrown/decipher/internal/config"
	"github.com/michaelbrown/decipher/internal/explain"
	"github.com/michaelbrown/decipher/internal/metrics"
	"github.com/michaelbrown/decipher/internal/sandbox"
	"github.com/michaelbrown/decipher/internal/storage"
)

// Server is the HTTP server for the decipher API.
type Server struct {
	cfg       *config.Config
	sandbox   sandbox.Sandbox
	store     storage.Store // nil disables history
	explainer *explain.Explainer
	metrics   *prometheus.Registry // nil disables /metrics
	runs      *RunManager
	router    chi.Router
	http      *http.Server
}

// Deps are the collaborators a Server needs. Store, Explainer and Metrics
// are optional.
type Deps struct {
	Sandbox   sandbox.Sandbox
	Store     storage.Store
	Explainer *explain.Explainer
	Metrics   *prometheus.Registry
}

// New creates a new Server.
func New(cfg *config.Config, deps Deps) *Server {
	explainer := deps.Explainer
	if explainer == nil {
		explainer = explain.New(nil, 0)
	}
	s := &Server{
		cfg:       cfg,
		sandbox:   deps.Sandbox,
		store:     deps.Store,
		explainer: explainer,
		metrics:   deps.Metrics,
		runs:      NewRunManager(cfg.Server.MaxConcurrent),
		router:    chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsHandler(s.cfg.Server.AllowedOrigins))

	r.Get("/", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", metrics.Handler(s.metrics))
	}

	r.Route("/python", func(r chi.Router) {
		// WebSocket (no JSON content-type)
		r.Get("/visualize/ws", s.handleVisualizeStream)

		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)
			r.Post("/visualize", s.handleVisualize)
			r.Post("/explain", s.handleExplain)
			r.Post("/summarize", s.handleSummarize)
			r.Post("/bfs", s.handleBFS)
			r.Post("/dfs", s.handleDFS)
			r.Post("/wavearray", s.handleWaveArray)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(jsonContentType)

		// Legacy aliases
		r.Post("/visualize", s.handleVisualize)
		r.Post("/explain", s.handleExplain)
		r.Post("/summarize", s.handleSummarize)
		r.Post("/debug/trace", s.handleDebugTrace)

		history := func(r chi.Router) {
			r.Post("/save", s.handleSaveHistory)
			r.Get("/entry/{id}", s.handleGetEntry)
			r.Delete("/entry/{id}", s.handleDeleteEntry)
			r.Get("/{userID}", s.handleListHistory)
			r.Delete("/{userID}", s.handleClearHistory)
		}
		r.Route("/api/history", history)
		r.Route("/api/codeHistory", history)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// corsHandler admits browser requests from the allowed origins. "*" admits
// any origin, and then credentials are never allowed.
func corsHandler(allowed []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(allowed, "*"),
		MaxAge:           300,
	})
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("decipher server starting on http://localhost%s", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	s.runs.CloseAll()

	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
