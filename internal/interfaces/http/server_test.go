package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanlens/loanlens/internal/config"
)

func TestNewServer_AppliesConfig(t *testing.T) {
	srv := NewServer(config.ServerConfig{
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    20 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}, testRouter(), nil)

	assert.Equal(t, ":8080", srv.srv.Addr)
	assert.Equal(t, 10*time.Second, srv.srv.ReadTimeout)
	assert.Equal(t, 20*time.Second, srv.srv.WriteTimeout)
	assert.Equal(t, 5*time.Second, srv.shutdownTimeout)
	assert.NotNil(t, srv.Handler())
}

func TestServer_HandlerServes(t *testing.T) {
	srv := NewServer(config.ServerConfig{Port: 8080}, testRouter(), nil)

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := NewServer(config.ServerConfig{Port: 8080}, testRouter(), nil)
	require.NoError(t, srv.Shutdown(context.Background()))
}
