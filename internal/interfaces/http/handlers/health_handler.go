package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// healthCheckTimeout bounds one readiness sweep across all components.
const healthCheckTimeout = 5 * time.Second

// HealthChecker is implemented by infrastructure components that can report
// their own connectivity.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a named function to HealthChecker.
type CheckerFunc struct {
	CheckerName string
	Fn          func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                    { return c.CheckerName }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

// HealthHandler serves the health and version endpoints.
type HealthHandler struct {
	build    BuildInfo
	startAt  time.Time
	checkers []HealthChecker
}

// NewHealthHandler builds the handler over the given component checkers.
func NewHealthHandler(build BuildInfo, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{build: build, startAt: time.Now(), checkers: checkers}
}

// ComponentStatus is one dependency's health in the /health response.
type ComponentStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

// Health handles GET /health: 200 with every component healthy, 503 when any
// dependency is down. With no registered checkers the process itself is the
// answer.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: h.build.Version,
		Uptime:  time.Since(h.startAt).Truncate(time.Second).String(),
	}

	if len(h.checkers) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		resp.Components = h.checkAll(ctx)
		for _, c := range resp.Components {
			if c.Status != "healthy" {
				resp.Status = "unhealthy"
				break
			}
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// checkAll probes every component concurrently; a slow dependency cannot
// serialize the sweep past the shared timeout.
func (h *HealthHandler) checkAll(ctx context.Context) map[string]ComponentStatus {
	var mu sync.Mutex
	var wg sync.WaitGroup
	components := make(map[string]ComponentStatus, len(h.checkers))

	for _, checker := range h.checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := c.Check(ctx)
			status := ComponentStatus{
				Status:  "healthy",
				Latency: time.Since(start).Truncate(time.Millisecond).String(),
			}
			if err != nil {
				status.Status = "unhealthy"
				status.Error = err.Error()
			}
			mu.Lock()
			components[c.Name()] = status
			mu.Unlock()
		}(checker)
	}
	wg.Wait()
	return components
}

// VersionResponse is the /version body.
type VersionResponse struct {
	BuildInfo
	GoVersion string `json:"go_version"`
}

// Version handles GET /version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{BuildInfo: h.build, GoVersion: runtime.Version()})
}
