// Package server runs the HTTP listener with graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"
)

const shutdownGrace = 10 * time.Second

// Server wraps http.Server with lifecycle hooks suitable for fx.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
	group  *errgroup.Group
}

func New(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start(_ context.Context) error {
	g := &errgroup.Group{}
	s.group = g
	g.Go(func() error {
		s.logger.Info("http.listen", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http.serve", zap.Error(err))
			return err
		}
		return nil
	})
	return nil
}

// Stop drains in-flight requests before closing the listener.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.group != nil {
		return s.group.Wait()
	}
	return nil
}
