// Package api exposes captures, their text and media payloads, and tags over
// HTTP. Every route except the health check and static media acts on behalf
// of the user named in the X-User-ID header.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CaptureVault/internal/capture"
	"github.com/dharsanguruparan/CaptureVault/internal/config"
)

// Reconciler schedules a rewrite of a capture's derived media metadata.
// *queue.Client satisfies it.
type Reconciler interface {
	EnqueueReconcile(ctx context.Context, captureID string) error
}

// Options holds the optional collaborators of a Server.
type Options struct {
	// Reconciler queues reconcile requests. When nil they run inline.
	Reconciler Reconciler
	// Media, when set, serves stored files below /media/.
	Media http.Handler
}

// Server exposes HTTP endpoints for captures and tags.
type Server struct {
	cfg    *config.Config
	svc    *capture.Service
	opts   Options
	logger *zap.Logger

	once    sync.Once
	handler http.Handler
}

// New constructs a Server. logger may be nil.
func New(cfg *config.Config, svc *capture.Service, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, svc: svc, opts: opts, logger: logger}
}

// Routes returns the HTTP handler. It is built once.
func (s *Server) Routes() http.Handler {
	s.once.Do(func() {
		s.handler = s.routes()
	})
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	if s.opts.Media != nil {
		r.Handle("/media/*", http.StripPrefix("/media", s.opts.Media))
	}

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/captures", func(r chi.Router) {
			r.Post("/", s.handleCreateCapture)
			r.Get("/", s.handleListCaptures)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCapture)
				r.Patch("/", s.handleUpdateCapture)
				r.Delete("/", s.handleDeleteCapture)
				r.Put("/text", s.handleSaveText)
				r.Post("/text/pdf", s.handleImportPDF)
				r.Put("/media", s.handleSaveMedia)
				r.Get("/media/url", s.handleMediaURL)
				r.Post("/reconcile", s.handleReconcile)
				r.Get("/syncs", s.handleListSyncs)
				r.Post("/syncs", s.handleRecordSync)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Post("/", s.handleCreateTag)
			r.Get("/", s.handleListTags)
		})
		r.Route("/integrations", func(r chi.Router) {
			r.Post("/", s.handleCreateIntegration)
			r.Get("/", s.handleListIntegrations)
		})
	})
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", zap.String("address", s.cfg.Address))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
