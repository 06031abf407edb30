package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/exp/slog"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the HTTP listener for one hosted session.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

func New(addr string, handler http.Handler, log *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.With(slog.String("component", "sync_server")),
	}
}

// Start binds the listener and serves in the background. Binding happens
// here, not in the goroutine, so an occupied port fails fast.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("bind sync server: %w", err)
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("sync server failed", slog.String("error", err.Error()))
		}
	}()

	s.log.Info("sync server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("sync server shutdown incomplete", slog.String("error", err.Error()))
	}
	s.log.Info("sync server stopped")
}

// Addr reports the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}
