package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chitchat/internal/registry"
	"github.com/Tyrowin/chitchat/internal/server"
)

func newTestServer(t *testing.T, customize func(cfg *server.Config)) *server.Server {
	t.Helper()
	cfg := server.NewConfig()
	cfg.AllowedOrigins = append(cfg.AllowedOrigins, testOrigin)
	if customize != nil {
		customize(cfg)
	}
	log := slog.New(slog.DiscardHandler)
	router := server.NewRouter(registry.New(cfg.RegistryOptions()), log, cfg.RouterOptions())
	go router.Run()
	t.Cleanup(func() { _ = router.Shutdown(2 * time.Second) })
	return server.New(cfg, router, log)
}

// TestWebSocketHandlerMethodValidation checks that only GET reaches the upgrader.
func TestWebSocketHandlerMethodValidation(t *testing.T) {
	s := newTestServer(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/ws", nil)
			w := httptest.NewRecorder()

			s.WebSocketHandler(w, req)

			require.Equal(t, http.StatusMethodNotAllowed, w.Code)
			require.Equal(t, "Method not allowed. WebSocket endpoint only accepts GET requests.", strings.TrimSpace(w.Body.String()))
		})
	}
}

func TestWebSocketHandler_Plain_GET_Is_Rejected(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()

	s.WebSocketHandler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	server.HealthHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	require.Equal(t, "chitchat server is running!", w.Body.String())
}

func TestUsersHandler_Empty_Roster(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	w := httptest.NewRecorder()

	s.UsersHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var entries []server.UserEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Empty(t, entries)
}

func TestUsersHandler_Rejects_POST(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	w := httptest.NewRecorder()

	s.UsersHandler(w, req)

	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSetupRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	testServer := httptest.NewServer(server.SetupRoutes(s))
	defer testServer.Close()

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{path: "/", contentType: "text/plain", contains: "chitchat server is running!"},
		{path: "/users", contentType: "application/json", contains: "[]"},
		{path: "/test", contentType: "text/html", contains: "<title>chitchat</title>"},
		{path: "/metrics", contains: "chitchat_connections_active"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(testServer.URL + tt.path)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			require.Equal(t, http.StatusOK, resp.StatusCode)
			if tt.contentType != "" {
				require.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			}
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Contains(t, string(body), tt.contains)
		})
	}
}

// TestCreateServer verifies the timeouts applied to the HTTP server.
func TestCreateServer(t *testing.T) {
	mux := http.NewServeMux()
	srv := server.CreateServer(":8080", mux)

	require.Equal(t, ":8080", srv.Addr)
	require.Equal(t, mux, srv.Handler)
	require.Equal(t, 15*time.Second, srv.ReadTimeout)
	require.Equal(t, 15*time.Second, srv.WriteTimeout)
	require.Equal(t, 60*time.Second, srv.IdleTimeout)
}
