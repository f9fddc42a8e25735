package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server wraps the HTTP server with sane timeouts and graceful close.
type Server struct {
	srv *http.Server
	log *zap.SugaredLogger
}

func Get() *Server {
	return &Server{
		srv: &http.Server{
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *Server) WithAddr(addr string) *Server {
	s.srv.Addr = addr
	return s
}

func (s *Server) WithRouter(h http.Handler) *Server {
	s.srv.Handler = h
	return s
}

func (s *Server) WithErrLogger(log *zap.SugaredLogger) *Server {
	s.log = log
	return s
}

// Start blocks until the listener closes.
func (s *Server) Start() error {
	if s.srv.Addr == "" {
		return fmt.Errorf("server missing address")
	}
	if s.srv.Handler == nil {
		return fmt.Errorf("server missing handler")
	}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down gracefully, letting in-flight requests finish.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
