package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the results
// pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	pinChecks       *prometheus.CounterVec
	rankRecomputes  *prometheus.CounterVec
	publishedTotal  prometheus.Counter
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

	pinChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pin_checks_total",
		Help: "Result pin consumption attempts by outcome",
	}, []string{"outcome"})

	rankRecomputes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ranking_recomputes_total",
		Help: "Wholesale ranking recomputations by scope",
	}, []string{"scope"})

	publishedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "result_summaries_published_total",
		Help: "Result summaries flipped to published",
	})

	registry.MustRegister(requestDuration, requestTotal, pinChecks, rankRecomputes, publishedTotal)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		pinChecks:       pinChecks,
		rankRecomputes:  rankRecomputes,
		publishedTotal:  publishedTotal,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// IncPinCheck counts one pin consumption attempt.
func (s *MetricsService) IncPinCheck(outcome string) {
	if s == nil {
		return
	}
	s.pinChecks.WithLabelValues(outcome).Inc()
}

// IncRankingRecompute counts one wholesale ranking replacement.
func (s *MetricsService) IncRankingRecompute(scope string) {
	if s == nil {
		return
	}
	s.rankRecomputes.WithLabelValues(scope).Inc()
}

// AddPublishedSummaries counts summaries newly flipped to published.
func (s *MetricsService) AddPublishedSummaries(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.publishedTotal.Add(float64(n))
}
