package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "issuescout"

type httpMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec

	searchTotal        *prometheus.CounterVec
	repoLookupFailures prometheus.Counter
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status_class"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_class"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of HTTP requests with status >= 400.",
		}, []string{"method", "route", "status_code"}),
		searchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Issue searches by outcome (ok, partial, error).",
		}, []string{"outcome"}),
		repoLookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "search",
			Name:      "repo_lookup_failures_total",
			Help:      "Repository lookups that fell back to placeholder data.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requestTotal, m.requestDuration, m.requestErrors, m.searchTotal, m.repoLookupFailures)
	}
	return m
}

func (m *httpMetrics) observeSearch(outcome string, lookupFailures int) {
	if m == nil {
		return
	}
	m.searchTotal.WithLabelValues(outcome).Inc()
	if lookupFailures > 0 {
		m.repoLookupFailures.Add(float64(lookupFailures))
	}
}

func requestMetricsMiddleware(metrics *httpMetrics, next http.Handler) http.Handler {
	if metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL != nil && r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := requestRouteLabel(r)
		statusClass := httpStatusClass(rec.status)

		metrics.requestTotal.WithLabelValues(r.Method, route, statusClass).Inc()
		metrics.requestDuration.WithLabelValues(r.Method, route, statusClass).Observe(time.Since(start).Seconds())
		if rec.status >= http.StatusBadRequest {
			metrics.requestErrors.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		}
	})
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// requestRouteLabel 优先用 mux 匹配到的路由，未匹配时按前缀归类，避免 label 爆炸
func requestRouteLabel(r *http.Request) string {
	if r == nil || r.URL == nil {
		return "unknown"
	}
	if pattern := normalizeRoutePattern(r.Pattern); pattern != "" {
		return pattern
	}
	switch path := r.URL.Path; {
	case path == "/healthz":
		return "/healthz"
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	case strings.HasPrefix(path, "/auth/"):
		return "/auth/*"
	default:
		return "other"
	}
}

func normalizeRoutePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return ""
	}
	if _, route, ok := strings.Cut(pattern, " "); ok {
		return strings.TrimSpace(route)
	}
	return pattern
}

func httpStatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
