package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	t.Helper()
	c, err := NewCollector(CollectorConfig{Namespace: "loanlens"}, logging.NewNopLogger())
	require.NoError(t, err)
	return NewAppMetrics(c), c
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordHTTPRequest("GET", "/api/v1/documents/{id}/summary", 200, 12*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/documents/{id}/summary", 200, 20*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/v1/documents", 400, time.Millisecond)

	out := scrape(t, c)
	assert.Contains(t, out, `loanlens_http_requests_total{method="GET",path="/api/v1/documents/{id}/summary",status="200"} 2`)
	assert.Contains(t, out, `loanlens_http_requests_total{method="POST",path="/api/v1/documents",status="400"} 1`)
	assert.Contains(t, out, "loanlens_http_request_duration_seconds_bucket")
}

func TestRecordUpload(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordUpload(true)
	m.RecordUpload(true)
	m.RecordUpload(false)

	out := scrape(t, c)
	assert.Contains(t, out, `loanlens_documents_uploaded_total{status="accepted"} 2`)
	assert.Contains(t, out, `loanlens_documents_uploaded_total{status="rejected"} 1`)
}

func TestRecordAnalysis(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordAnalysis("heuristic", false, 3*time.Second)
	m.RecordAnalysis("llm", true, 40*time.Second)

	out := scrape(t, c)
	assert.Contains(t, out, `loanlens_analysis_total{backend="heuristic",status="complete"} 1`)
	assert.Contains(t, out, `loanlens_analysis_total{backend="llm",status="failed"} 1`)
	assert.Contains(t, out, `loanlens_analysis_duration_seconds_count{backend="heuristic"} 1`)
}

func TestRecordEvent(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordEvent("document.uploaded", false)
	m.RecordEvent("document.uploaded", true)

	out := scrape(t, c)
	assert.Contains(t, out, `loanlens_events_consumed_total{topic="document.uploaded"} 2`)
	assert.Contains(t, out, `loanlens_events_failed_total{topic="document.uploaded"} 1`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordCacheAccess("summary", true)
	m.RecordCacheAccess("summary", true)
	m.RecordCacheAccess("summary", false)

	out := scrape(t, c)
	assert.Contains(t, out, `loanlens_cache_hits_total{cache="summary"} 2`)
	assert.Contains(t, out, `loanlens_cache_misses_total{cache="summary"} 1`)
}

func TestRecordHighlight(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.RecordHighlight("tier1", "marked", 2*time.Millisecond)
	m.RecordHighlight("page_fallback", "page_fallback", 30*time.Millisecond)

	out := scrape(t, c)
	assert.Contains(t, out, `loanlens_highlight_requests_total{state="marked",tier="tier1"} 1`)
	assert.Contains(t, out, `loanlens_highlight_requests_total{state="page_fallback",tier="page_fallback"} 1`)
	assert.Contains(t, out, "loanlens_highlight_duration_seconds_count 2")
}

func TestHighlightSessionsGauge(t *testing.T) {
	m, c := newTestAppMetrics(t)

	m.HighlightSessionsActive.WithLabelValues().Inc()
	m.HighlightSessionsActive.WithLabelValues().Inc()
	m.HighlightSessionsActive.WithLabelValues().Dec()

	assert.Contains(t, scrape(t, c), "loanlens_highlight_sessions_active 1")
}

func TestNopAppMetricsIsSafe(t *testing.T) {
	t.Parallel()

	m := NewNopAppMetrics()
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordUpload(true)
	m.RecordAnalysis("heuristic", false, time.Second)
	m.RecordEvent("document.uploaded", true)
	m.RecordCacheAccess("summary", false)
	m.RecordHighlight("tier2", "marked", time.Millisecond)
	m.HighlightSessionsActive.WithLabelValues().Inc()
}
