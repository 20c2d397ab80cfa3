// Package server binds the HTTP surface to a Router: upgrading WebSocket
// requests, checking origins and exposing the roster.
package server

import (
	"log/slog"

	"github.com/gorilla/websocket"
)

// Server holds what the HTTP handlers need: the configuration, the router
// that owns the connections and the upgrader.
type Server struct {
	cfg      *Config
	router   *Router
	log      *slog.Logger
	origins  originPolicy
	upgrader websocket.Upgrader
}

// New creates a Server for router. cfg is sanitized in place.
func New(cfg *Config, router *Router, log *slog.Logger) *Server {
	cfg.Sanitize()
	s := &Server{
		cfg:     cfg,
		router:  router,
		log:     log,
		origins: newOriginPolicy(cfg.AllowedOrigins, log),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router returns the router the server hands connections to.
func (s *Server) Router() *Router {
	return s.router
}
