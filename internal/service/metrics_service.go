package service

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic and the capture pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	documentsCreated prometheus.Counter
	documentsDeleted prometheus.Counter
	captureJobs      *prometheus.CounterVec
	captureDuration  prometheus.Histogram
	pagesProcessed   *prometheus.CounterVec
	summaries        *prometheus.CounterVec
	widgetRefreshes  *prometheus.CounterVec
	exports          *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	documentsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_created_total",
		Help: "Documents durably created",
	})

	documentsDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_deleted_total",
		Help: "Documents deleted",
	})

	captureJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_jobs_total",
		Help: "Capture jobs by terminal status",
	}, []string{"source", "status"})

	captureDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "capture_job_duration_seconds",
		Help:    "Time from capture start to terminal state",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	pagesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pages_processed_total",
		Help: "Pages encoded by the assembler",
	}, []string{"watermarked"})

	summaries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "summaries_total",
		Help: "Summarization attempts by outcome",
	}, []string{"status"})

	widgetRefreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "widget_refresh_total",
		Help: "Widget snapshot publications by outcome",
	}, []string{"status"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pdf_exports_total",
		Help: "PDF exports by outcome",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, documentsCreated, documentsDeleted, captureJobs,
		captureDuration, pagesProcessed, summaries, widgetRefreshes, exports, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		documentsCreated: documentsCreated,
		documentsDeleted: documentsDeleted,
		captureJobs:      captureJobs,
		captureDuration:  captureDuration,
		pagesProcessed:   pagesProcessed,
		summaries:        summaries,
		widgetRefreshes:  widgetRefreshes,
		exports:          exports,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// DocumentCreated counts one committed document.
func (m *MetricsService) DocumentCreated() {
	if m == nil {
		return
	}
	m.documentsCreated.Inc()
}

// DocumentDeleted counts one committed deletion.
func (m *MetricsService) DocumentDeleted() {
	if m == nil {
		return
	}
	m.documentsDeleted.Inc()
}

// CaptureFinished records a capture job reaching a terminal state.
func (m *MetricsService) CaptureFinished(source, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.captureJobs.WithLabelValues(source, status).Inc()
	m.captureDuration.Observe(duration.Seconds())
}

// PageProcessed counts one encoded page.
func (m *MetricsService) PageProcessed(watermarked bool) {
	if m == nil {
		return
	}
	m.pagesProcessed.WithLabelValues(strconv.FormatBool(watermarked)).Inc()
}

// SummaryAttempted records one summarization outcome.
func (m *MetricsService) SummaryAttempted(succeeded bool) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(outcome(succeeded)).Inc()
}

// WidgetRefreshed records one snapshot publication.
func (m *MetricsService) WidgetRefreshed(succeeded bool) {
	if m == nil {
		return
	}
	m.widgetRefreshes.WithLabelValues(outcome(succeeded)).Inc()
}

// ExportRendered records one PDF export.
func (m *MetricsService) ExportRendered(succeeded bool) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(outcome(succeeded)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
