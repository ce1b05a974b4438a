package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	answerTotal        *prometheus.CounterVec
	answerVerdictTotal *prometheus.CounterVec
	answerSupportScore *prometheus.HistogramVec
	answerDuration     *prometheus.HistogramVec
	evidenceCount      *prometheus.HistogramVec
	degradedTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "parecer",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: serviceLabel,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "parecer",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "parecer",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		},
	)
	answerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "parecer",
			Subsystem:   "answer",
			Name:        "requests_total",
			Help:        "Total completed answer and search requests.",
			ConstLabels: serviceLabel,
		},
		[]string{"endpoint"},
	)
	answerVerdictTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "parecer",
			Subsystem:   "answer",
			Name:        "verdict_total",
			Help:        "Total answers by validation verdict.",
			ConstLabels: serviceLabel,
		},
		[]string{"endpoint", "label"},
	)
	answerSupportScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "parecer",
			Subsystem:   "answer",
			Name:        "support_score",
			Help:        "Distribution of answer support scores.",
			Buckets:     []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1},
			ConstLabels: serviceLabel,
		},
		[]string{"endpoint"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "parecer",
			Subsystem:   "answer",
			Name:        "duration_seconds",
			Help:        "Answer pipeline duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: serviceLabel,
		},
		[]string{"endpoint"},
	)
	evidenceCount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "parecer",
			Subsystem:   "retrieval",
			Name:        "evidence_count",
			Help:        "Distribution of evidence items per request.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
			ConstLabels: serviceLabel,
		},
		[]string{"endpoint"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "parecer",
			Subsystem:   "retrieval",
			Name:        "degraded_total",
			Help:        "Total requests served with a degraded retrieval pipeline.",
			ConstLabels: serviceLabel,
		},
		[]string{"endpoint", "reason"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		answerTotal,
		answerVerdictTotal,
		answerSupportScore,
		answerDuration,
		evidenceCount,
		degradedTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		answerTotal:        answerTotal,
		answerVerdictTotal: answerVerdictTotal,
		answerSupportScore: answerSupportScore,
		answerDuration:     answerDuration,
		evidenceCount:      evidenceCount,
		degradedTotal:      degradedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordAnswer tracks one completed answer or search request. Search
// requests carry no verdict and pass an empty label.
func (m *HTTPServerMetrics) RecordAnswer(endpoint, label string, supportScore float64, evidenceCount int, duration time.Duration) {
	m.answerTotal.WithLabelValues(endpoint).Inc()
	if label != "" {
		m.answerVerdictTotal.WithLabelValues(endpoint, label).Inc()
		m.answerSupportScore.WithLabelValues(endpoint).Observe(supportScore)
	}
	m.answerDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	m.evidenceCount.WithLabelValues(endpoint).Observe(float64(evidenceCount))
}

func (m *HTTPServerMetrics) RecordDegradation(endpoint, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.degradedTotal.WithLabelValues(endpoint, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
