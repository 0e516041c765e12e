package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"powchallenge/internal/store"
)

// Config holds listener and timeout settings for the HTTP server, the same
// shape as the teacher's server.Config, generalized from a raw TCP listener
// to an *http.Server.
type Config struct {
	ListenSocket    string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server wraps an *http.Server with the teacher's graceful-shutdown shape:
// ListenAndServe serves from a background goroutine and calls
// http.Server.Shutdown when the outer context is done, bounded by
// ShutdownTimeout.
type Server struct {
	config Config
	api    *API
	logger *slog.Logger
	http   *http.Server
}

// NewServer builds a Server bound to store s.
func NewServer(config Config, s *store.Store, logger *slog.Logger) *Server {
	api := New(s, logger)

	return &Server{
		config: config,
		api:    api,
		logger: logger,
		http: &http.Server{
			Addr:         config.ListenSocket,
			Handler:      api.Routes(),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
	}
}

// ListenAndServe starts the HTTP server and blocks until ctx is canceled,
// then performs a graceful shutdown bounded by config.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("httpapi: failed to start listener: %w", err)
	}

	s.logger.Info("server started", "address", s.http.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown did not complete cleanly", "error", err)
			return err
		}
		<-errCh
		return nil

	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("httpapi: server error: %w", err)
		}
		return nil
	}
}
