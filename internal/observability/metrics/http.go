package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	ragRequestsTotal     *prometheus.CounterVec
	ragOutcomeTotal      *prometheus.CounterVec
	ragRetrievedChunks   *prometheus.HistogramVec
	ragBestScore         *prometheus.HistogramVec
	ragDuration          *prometheus.HistogramVec
	webFallbackFailures  *prometheus.CounterVec
	resolveRequestsTotal *prometheus.CounterVec
	chunkEnqueuedTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "css",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "css",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "css",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ragRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "css",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total answered questions.",
		},
		[]string{"service", "endpoint"},
	)
	ragOutcomeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "css",
			Subsystem: "rag",
			Name:      "outcome_total",
			Help:      "Answered questions by grounding outcome.",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	ragRetrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "css",
			Subsystem: "rag",
			Name:      "evidence_chunks",
			Help:      "Distribution of evidence chunks per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service", "endpoint"},
	)
	ragBestScore := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "css",
			Subsystem: "rag",
			Name:      "best_score",
			Help:      "Distribution of the best fused retrieval score.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.35, 0.4, 0.5, 0.6, 0.75, 0.9, 1},
		},
		[]string{"service", "endpoint"},
	)
	ragDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "css",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "Question answering duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	webFallbackFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "css",
			Subsystem: "rag",
			Name:      "web_fallback_failures_total",
			Help:      "Fallback answers served without web search results.",
		},
		[]string{"service", "endpoint"},
	)
	resolveRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "css",
			Subsystem: "resolver",
			Name:      "requests_total",
			Help:      "Case study resolutions by result.",
		},
		[]string{"service", "result"},
	)
	chunkEnqueuedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "css",
			Subsystem: "ingest",
			Name:      "chunks_enqueued_total",
			Help:      "Chunk records accepted for asynchronous ingestion.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		ragRequestsTotal,
		ragOutcomeTotal,
		ragRetrievedChunks,
		ragBestScore,
		ragDuration,
		webFallbackFailures,
		resolveRequestsTotal,
		chunkEnqueuedTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		ragRequestsTotal:     ragRequestsTotal,
		ragOutcomeTotal:      ragOutcomeTotal,
		ragRetrievedChunks:   ragRetrievedChunks,
		ragBestScore:         ragBestScore,
		ragDuration:          ragDuration,
		webFallbackFailures:  webFallbackFailures,
		resolveRequestsTotal: resolveRequestsTotal,
		chunkEnqueuedTotal:   chunkEnqueuedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
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
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded for unknown paths.
func normalizePath(path string) string {
	switch path {
	case "/healthz", "/metrics", "/v1/query", "/v1/case-studies/resolve", "/v1/admin/indexes", "/v1/chunks":
		return path
	default:
		return "other"
	}
}

// RecordAnswer records one answered question. webFailed marks a fallback
// served without web results.
func (m *HTTPServerMetrics) RecordAnswer(service, endpoint, outcome string, evidence int, bestScore float64, webFailed bool, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.ragRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.ragOutcomeTotal.WithLabelValues(service, endpoint, outcome).Inc()
	m.ragRetrievedChunks.WithLabelValues(service, endpoint).Observe(float64(evidence))
	m.ragBestScore.WithLabelValues(service, endpoint).Observe(bestScore)
	m.ragDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if webFailed {
		m.webFallbackFailures.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordResolve(service string, found bool, err error) {
	result := "found"
	switch {
	case err != nil:
		result = "error"
	case !found:
		result = "not_found"
	}
	m.resolveRequestsTotal.WithLabelValues(service, result).Inc()
}

func (m *HTTPServerMetrics) RecordChunkEnqueued(service string) {
	m.chunkEnqueuedTotal.WithLabelValues(service).Inc()
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
