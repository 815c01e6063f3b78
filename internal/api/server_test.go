package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(config ServerConfig) *Server {
	handlers := NewHandlers(&fakeController{}, "railsvisor.yaml", nil)
	return NewServer(config, handlers)
}

func TestCorsMiddleware_LocalhostOrigins(t *testing.T) {
	tests := []struct {
		name          string
		origin        string
		expectAllowed bool
	}{
		{"localhost http", "http://localhost", true},
		{"localhost with port", "http://localhost:3000", true},
		{"127.0.0.1 with port", "http://127.0.0.1:8080", true},
		{"ipv6 localhost", "http://[::1]", true},
		{"external domain", "http://evil.com", false},
		{"subdomain localhost", "http://sub.localhost", false},
		{"no origin", "", false},
		{"localhost-like domain", "http://localhost.evil.com", false},
	}

	server := newTestServer(ServerConfig{Host: "127.0.0.1"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			server.router.ServeHTTP(w, req)

			corsHeader := w.Header().Get("Access-Control-Allow-Origin")
			if tt.expectAllowed {
				assert.Equal(t, tt.origin, corsHeader)
			} else {
				assert.Empty(t, corsHeader)
			}
		})
	}
}

func TestCorsMiddleware_OptionsRequest(t *testing.T) {
	server := newTestServer(ServerConfig{Host: "127.0.0.1"})

	req := httptest.NewRequest("OPTIONS", "/api/v1/restart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		header     string
		wantStatus int
		wantBody   string
	}{
		{"disabled", false, "", http.StatusOK, ""},
		{"missing header", true, "", http.StatusUnauthorized, "missing authorization header"},
		{"basic auth", true, "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "invalid authorization header format"},
		{"token without bearer", true, "secret", http.StatusUnauthorized, "invalid authorization header format"},
		{"wrong token", true, "Bearer wrong", http.StatusUnauthorized, "invalid token"},
		{"valid token", true, "Bearer secret", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(ServerConfig{
				Host:        "127.0.0.1",
				AuthEnabled: tt.enabled,
				Token:       "secret",
			})

			req := httptest.NewRequest("GET", "/api/v1/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			server.router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
				assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestAuthMiddleware_HealthEndpointNoAuth(t *testing.T) {
	server := newTestServer(ServerConfig{Host: "127.0.0.1", AuthEnabled: true, Token: "secret"})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("open without token", func(t *testing.T) {
		server := newTestServer(ServerConfig{Host: "127.0.0.1"})

		req := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()
		server.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), "railsvisor_server_up"))
	})

	t.Run("requires token when auth is enabled", func(t *testing.T) {
		server := newTestServer(ServerConfig{Host: "127.0.0.1", AuthEnabled: true, Token: "secret"})

		req := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()
		server.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestServerAddr(t *testing.T) {
	server := newTestServer(ServerConfig{Host: "127.0.0.1", Port: 8080})
	assert.Equal(t, "127.0.0.1:8080", server.Addr())
}

func TestServerStartShutdown(t *testing.T) {
	// Use port 0 to get a random available port
	server := newTestServer(ServerConfig{Host: "127.0.0.1", Port: 0})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Give it time to start
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errCh:
		// http.ErrServerClosed is expected
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("server did not stop within timeout")
	}
}

func TestServerShutdown_NilServer(t *testing.T) {
	server := newTestServer(ServerConfig{Host: "127.0.0.1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, server.Shutdown(ctx))
}

func TestIsLocalhostOrigin(t *testing.T) {
	assert.True(t, isLocalhostOrigin("https://127.0.0.1:9443"))
	assert.True(t, isLocalhostOrigin("https://[::1]:8080"))
	assert.False(t, isLocalhostOrigin("http://localhost.attacker.com"))
	assert.False(t, isLocalhostOrigin("http://127.0.0.1.nip.io"))
	assert.False(t, isLocalhostOrigin(""))
}
