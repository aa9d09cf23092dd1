package prometheus

import (
	"strconv"
	"time"
)

// Histogram buckets tuned per concern: HTTP and highlight work are
// milliseconds, a full document analysis can run minutes.
var (
	DefaultHTTPDurationBuckets      = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultAnalysisDurationBuckets  = []float64{1, 5, 10, 30, 60, 120, 300, 600}
	DefaultHighlightDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}
)

// AppMetrics is the platform's metric set. Every field has exactly one
// writer: the HTTP middleware, the ingestion service, the analysis worker,
// the cached read path, or the highlight service.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec   // method, path, status
	HTTPRequestDuration HistogramVec // method, path
	HTTPActiveRequests  GaugeVec     // method

	// Document pipeline
	DocumentsUploadedTotal CounterVec   // status: accepted | rejected
	AnalysisTotal          CounterVec   // backend, status: complete | failed
	AnalysisDuration       HistogramVec // backend
	EventsConsumedTotal    CounterVec   // topic
	EventsFailedTotal      CounterVec   // topic

	// Cached reads
	CacheHitsTotal   CounterVec // cache
	CacheMissesTotal CounterVec // cache

	// Highlight engine
	HighlightRequestsTotal  CounterVec   // tier, state
	HighlightDuration       HistogramVec // no labels
	HighlightSessionsActive GaugeVec     // no labels
}

// NewAppMetrics registers the platform metric set on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "HTTP requests served", "method", "path", "status"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path"),
		HTTPActiveRequests:  collector.RegisterGauge("http_active_requests", "HTTP requests in flight", "method"),

		DocumentsUploadedTotal: collector.RegisterCounter("documents_uploaded_total", "Document uploads by outcome", "status"),
		AnalysisTotal:          collector.RegisterCounter("analysis_total", "Completed document analyses by outcome", "backend", "status"),
		AnalysisDuration:       collector.RegisterHistogram("analysis_duration_seconds", "Extraction plus analysis wall time", DefaultAnalysisDurationBuckets, "backend"),
		EventsConsumedTotal:    collector.RegisterCounter("events_consumed_total", "Pipeline events handled", "topic"),
		EventsFailedTotal:      collector.RegisterCounter("events_failed_total", "Pipeline events that exhausted retries", "topic"),

		CacheHitsTotal:   collector.RegisterCounter("cache_hits_total", "Read-through cache hits", "cache"),
		CacheMissesTotal: collector.RegisterCounter("cache_misses_total", "Read-through cache misses", "cache"),

		HighlightRequestsTotal:  collector.RegisterCounter("highlight_requests_total", "Highlight requests by resolved tier and terminal state", "tier", "state"),
		HighlightDuration:       collector.RegisterHistogram("highlight_duration_seconds", "Highlight resolution time", DefaultHighlightDurationBuckets),
		HighlightSessionsActive: collector.RegisterGauge("highlight_sessions_active", "Live highlight sessions"),
	}
}

// NewNopAppMetrics is the metric set used when exposition is disabled.
func NewNopAppMetrics() *AppMetrics {
	return NewAppMetrics(NewNoopCollector())
}

// RecordHTTPRequest observes one served request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload counts one upload attempt.
func (m *AppMetrics) RecordUpload(accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	m.DocumentsUploadedTotal.WithLabelValues(status).Inc()
}

// RecordAnalysis observes one finished analysis.
func (m *AppMetrics) RecordAnalysis(backend string, failed bool, duration time.Duration) {
	status := "complete"
	if failed {
		status = "failed"
	}
	m.AnalysisTotal.WithLabelValues(backend, status).Inc()
	m.AnalysisDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordEvent counts one consumed pipeline event.
func (m *AppMetrics) RecordEvent(topic string, failed bool) {
	m.EventsConsumedTotal.WithLabelValues(topic).Inc()
	if failed {
		m.EventsFailedTotal.WithLabelValues(topic).Inc()
	}
}

// RecordCacheAccess counts one cache lookup.
func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordHighlight observes one resolved highlight request.
func (m *AppMetrics) RecordHighlight(tier, state string, duration time.Duration) {
	m.HighlightRequestsTotal.WithLabelValues(tier, state).Inc()
	m.HighlightDuration.WithLabelValues().Observe(duration.Seconds())
}
