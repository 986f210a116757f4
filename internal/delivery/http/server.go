package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/databunker/price-checker/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server runs the router until its context is cancelled
type Server struct {
	cfg    config.ServerConfig
	engine *gin.Engine
	log    zerolog.Logger
}

// NewServer creates a server for the given router
func NewServer(cfg config.ServerConfig, engine *gin.Engine, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, engine: engine, log: log}
}

// Addr is the listen address
func (s *Server) Addr() string {
	return net.JoinHostPort("", s.cfg.Port)
}

// Run starts the HTTP listener and shuts down gracefully when ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		// Responses may take up to the request deadline
		WriteTimeout: s.cfg.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
