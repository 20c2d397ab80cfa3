// Package server wires HTTP handlers into a ServeMux for the chitchat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/Tyrowin/chitchat/internal/metrics"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
func SetupRoutes(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/users", s.UsersHandler)
	mux.HandleFunc("/test", s.TestPageHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
