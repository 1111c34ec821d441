package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stillpoint/drip/internal/auth"
	"github.com/stillpoint/drip/internal/config"
	"github.com/stillpoint/drip/internal/pkg/logger"
)

// Server wraps the HTTP server around the router.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer builds the server. authManager may be nil (auth disabled).
func NewServer(cfg config.ServerConfig, h *Handlers, authManager *auth.Manager) *Server {
	return &Server{
		cfg:     cfg,
		handler: SetupRoutes(h, authManager, cfg.AllowedOrigins),
	}
}

// ListenAndServe starts the HTTP server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// /process runs a whole batch synchronously; give it room.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	logger.Info("api: listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.handler }
