package http

import (
	"assetactivity/internal/api/http/handlers"
	"assetactivity/internal/config"
	"context"
	"net/http"

	"gitlab.com/nevasik7/alerting/logger"
)

type Server struct {
	log logger.Logger
	srv *http.Server
}

type ServerDeps struct {
	Logger      logger.Logger
	Cfg         *config.HTTPConfig
	Handler     *handlers.Handler
	Middlewares Middlewares
}

func NewServer(d *ServerDeps) *Server {
	router := BuildRouter(d.Handler, d.Middlewares)

	return &Server{
		log: d.Logger,
		srv: &http.Server{
			Addr:         d.Cfg.Addr,
			Handler:      router,
			ReadTimeout:  d.Cfg.ReadTimeout,
			WriteTimeout: d.Cfg.WriteTimeout,
			IdleTimeout:  d.Cfg.IdleTimeout,
		},
	}
}

// Start blocks until the server stops; http.ErrServerClosed after Shutdown
func (s *Server) Start() error {
	s.log.Infof("HTTP server listening on %s", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
