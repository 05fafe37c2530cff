// Package server exposes the local control API: manual rebuilds, status,
// health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"player-scheduler/internal/metrics"
	"player-scheduler/internal/scheduler"
)

// Controller is the part of the orchestrator the API drives.
type Controller interface {
	Rebuild(trigger string) scheduler.Result
	Status() scheduler.Status
}

// Server serves the control API.
type Server struct {
	ctrl       Controller
	router     chi.Router
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a Server listening on addr.
func New(addr string, ctrl Controller, logger zerolog.Logger) *Server {
	s := &Server{
		ctrl:   ctrl,
		router: chi.NewRouter(),
		logger: logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)
	s.configureRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Get("/status", s.handleStatus)
	s.router.Post("/rebuild", s.handleRebuild)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

type rebuildResponse struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Items   int       `json:"items"`
	BuiltAt time.Time `json:"built_at"`
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	res := s.ctrl.Rebuild(scheduler.TriggerManual)
	writeJSON(w, http.StatusAccepted, rebuildResponse{
		ID:      res.ID.String(),
		Kind:    string(res.Kind),
		Items:   res.Cycle.Len(),
		BuiltAt: res.BuiltAt,
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("control API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
