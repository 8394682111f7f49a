package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"truelens/internal/logger"
	syncpkg "truelens/internal/sync"
)

// Server exposes the sync trigger and status endpoints.
type Server struct {
	orch *syncpkg.Orchestrator
	http *http.Server
}

// New builds the HTTP server on host:port.
func New(orch *syncpkg.Orchestrator, host string, port int) *Server {
	s := &Server{orch: orch}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", s.handleSync)
		r.Get("/sync/status", s.handleSyncStatus)
	})

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown or a fatal error.
func (s *Server) ListenAndServe() error {
	logger.Get().Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSync starts a pass in the background. The caller learns only
// whether the trigger was accepted; progress is visible via the status
// endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Start(context.WithoutCancel(r.Context())); err != nil {
		if errors.Is(err, syncpkg.ErrSyncInProgress) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}
		logger.Get().Error("sync trigger failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "failed to start sync",
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"state": string(s.orch.State()),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Get().Error("failed to encode response", "error", err)
	}
}
