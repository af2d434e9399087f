// Package ipc serves the HTTP and websocket surface of a livewidgets
// process: page mounting, host re-renders, update events, announcements,
// workbook export and the per-page frame stream.
package ipc

import (
	"context"
	stdliberrors "errors"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/odvcencio/livewidgets/pkg/engine"
	"github.com/odvcencio/livewidgets/pkg/telemetry"
)

const maxWSReadBytes = 64 << 10

// Config controls the server behavior.
type Config struct {
	BindAddress    string
	AllowedOrigins []string
	// MaxBodyBytes caps mount fragments and event payloads.
	MaxBodyBytes      int64
	MaxConnections    int
	MessagesPerSecond float64
	Burst             int
	Metrics           bool
	Version           string
	LogOutput         io.Writer
}

// Server hosts the JSON/HTTP + WebSocket API.
type Server struct {
	cfg        Config
	manager    *engine.Manager
	hub        *Hub
	wsLimiter  *connLimiter
	origins    originPolicy
	httpServer *http.Server
	logger     *log.Logger
	router     http.Handler
}

// NewServer constructs a server over manager. hub must be the FrameSink
// the manager was created with.
func NewServer(cfg Config, manager *engine.Manager, hub *Hub) *Server {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1:4680"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = maxBodyBytesSmall
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 120
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 240
	}
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stdout
	}
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		cfg:       cfg,
		manager:   manager,
		hub:       hub,
		wsLimiter: newConnLimiter(cfg.MaxConnections),
		origins:   newOriginPolicy(cfg.AllowedOrigins),
		logger:    log.New(cfg.LogOutput, "[ipc] ", log.LstdFlags),
	}
	s.router = s.routes()
	return s
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(metricsMiddleware)
	router.Use(s.corsMiddleware)
	router.Use(securityHeadersMiddleware)

	router.Get("/healthz", s.handleHealthz)
	if s.cfg.Metrics {
		router.Handle("/metrics", telemetry.Handler())
	}

	router.Route("/api/pages", func(r chi.Router) {
		r.Get("/", s.handleListPages)
		r.Route("/{page}", func(r chi.Router) {
			r.Delete("/", s.handleClosePage)
			r.Post("/mount", s.handleMount)
			r.Get("/widgets", s.handleWidgets)
			r.Put("/elements/{element}", s.handleUpdateElement)
			r.Delete("/elements/{element}", s.handleDestroyElement)
			r.Post("/events/{channel}", s.handleEvent)
			r.Post("/announcements", s.handleAnnounce)
			r.Get("/export.xlsx", s.handleExport)
		})
	})
	router.Get("/ws/pages/{page}", s.handlePageSocket)
	return router
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Printf("serving livewidgets %s on %s", s.cfg.Version, s.cfg.BindAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
