package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/constants"
	"github.com/bogdan-lmk/discord-parer/internal/metrics"
	"github.com/bogdan-lmk/discord-parer/internal/middleware"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/service"
	"github.com/bogdan-lmk/discord-parer/internal/versioning"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes the operational read-only surface: health, status and
// metrics. Nothing here mutates relay state.
type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	commands *service.Commands
	version  versioning.Info
	port     int
	server   *http.Server
}

func NewServer(cfg *models.Config, commands *service.Commands, version versioning.Info, logger *logrus.Logger) *Server {
	port := cfg.Server.Port
	if port <= 0 {
		port = constants.DefaultServerPort
	}

	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		commands: commands,
		version:  version,
		port:     port,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.commands.Status(r.Context())
		if err != nil {
			s.logger.WithError(err).Error("Failed to collect status")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.WithError(err).Error("Failed to encode status response")
		}
	}
}

func (s *Server) handleVersion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.version); err != nil {
			s.logger.WithError(err).Error("Failed to encode version response")
		}
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(metrics.GetAllMetrics()); err != nil {
			s.logger.WithError(err).Error("Failed to encode metrics response")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}
}
