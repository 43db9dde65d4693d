// Package api exposes the shot editor over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/keagan/shotlist/internal/config"
	"github.com/keagan/shotlist/internal/editor"
	"github.com/rs/zerolog"
)

type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

type ServerConfig struct {
	Addr      string
	Editor    *editor.Editor
	Export    config.ExportConfig
	Logger    zerolog.Logger
	StartTime time.Time
}

func NewServer(cfg ServerConfig) *Server {
	cfg.Logger = cfg.Logger.With().Str("component", "api").Logger()
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
