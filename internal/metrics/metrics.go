// Package metrics exposes Prometheus collectors for the chat service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	admissionDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Admission gate outcomes, labeled by decision (allow, deny, error).",
		},
		[]string{"decision"},
	)

	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractions_total",
			Help: "Source extractions, labeled by strategy and status.",
		},
		[]string{"strategy", "status"},
	)

	extractionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Histogram of extraction latencies, labeled by strategy.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	completionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "completion_duration_seconds",
			Help:    "Histogram of completion call latencies, labeled by status.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	fetchRateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_rate_limit_delays_seconds",
			Help:    "Histogram of per-host politeness wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)
)

// maxDomainLabels caps the distinct domain label values on the fetch delay
// histogram. Hosts come from callers, so later ones collapse into "other".
const maxDomainLabels = 100

var fetchDomains = newLabelSet(maxDomainLabels)

// labelSet admits up to limit distinct values and maps the rest to "other".
type labelSet struct {
	mu    sync.Mutex
	limit int
	seen  map[string]struct{}
}

func newLabelSet(limit int) *labelSet {
	return &labelSet{limit: limit, seen: make(map[string]struct{})}
}

func (l *labelSet) label(v string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[v]; ok {
		return v
	}
	if len(l.seen) >= l.limit {
		return "other"
	}
	l.seen[v] = struct{}{}
	return v
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveAdmission counts an admission decision.
func ObserveAdmission(decision string) {
	admissionDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveExtraction records one strategy run.
func ObserveExtraction(strategy, status string, duration time.Duration) {
	extractionsTotal.WithLabelValues(strategy, status).Inc()
	extractionDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObserveCompletion records the latency of a completion call.
func ObserveCompletion(status string, duration time.Duration) {
	completionDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveFetchDelay records the duration of a politeness wait. Only the first
// maxDomainLabels domains get their own series.
func ObserveFetchDelay(domain string, duration time.Duration) {
	fetchRateLimitDelaysSeconds.WithLabelValues(fetchDomains.label(domain)).Observe(duration.Seconds())
}
