package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loanlens/loanlens/pkg/errors"
)

func healthyChecker(name string) HealthChecker {
	return CheckerFunc{CheckerName: name, Fn: func(ctx context.Context) error { return nil }}
}

func brokenChecker(name string) HealthChecker {
	return CheckerFunc{CheckerName: name, Fn: func(ctx context.Context) error {
		return errors.New(errors.ErrCodeDatabaseError, "connection refused")
	}}
}

func TestHealthHandler_AllHealthy(t *testing.T) {
	h := NewHealthHandler(BuildInfo{Version: "1.2.3"},
		healthyChecker("postgres"), healthyChecker("redis"), healthyChecker("minio"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Len(t, resp.Components, 3)
	assert.Equal(t, "healthy", resp.Components["redis"].Status)
}

func TestHealthHandler_OneComponentDown(t *testing.T) {
	h := NewHealthHandler(BuildInfo{Version: "1.2.3"},
		healthyChecker("postgres"), brokenChecker("redis"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["redis"].Status)
	assert.Contains(t, resp.Components["redis"].Error, "connection refused")
}

func TestHealthHandler_NoCheckers(t *testing.T) {
	h := NewHealthHandler(BuildInfo{Version: "dev"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_Version(t *testing.T) {
	h := NewHealthHandler(BuildInfo{Version: "1.2.3", Commit: "abc1234"})

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	h.Version(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp VersionResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "abc1234", resp.Commit)
	assert.NotEmpty(t, resp.GoVersion)
}
