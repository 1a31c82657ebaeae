// Package metrics exposes Prometheus collectors for the crawl scheduler.
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

// Result outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

var (
	schedulerDispatchesTotal        *prometheus.CounterVec
	schedulerResultsTotal           *prometheus.CounterVec
	schedulerJobDurationSeconds     prometheus.Histogram
	schedulerActiveWorkers          prometheus.Gauge
	schedulerCheckpointSavesTotal   prometheus.Counter
	schedulerDuplicatesRemovedTotal prometheus.Counter
	crawlerPagesTotal               *prometheus.CounterVec
	crawlerBytesTotal               *prometheus.CounterVec
	crawlerRateLimitDelaysSeconds   *prometheus.HistogramVec
	httpRequestsTotal               *prometheus.CounterVec
	httpRequestDurationSeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		schedulerDispatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_dispatches_total",
				Help: "Dispatch messages sent to workers, labeled by kind (job or sentinel).",
			},
			[]string{"kind"},
		)

		schedulerResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_results_total",
				Help: "Job results accepted by the coordinator, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		schedulerJobDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scheduler_job_duration_seconds",
				Help:    "Wall time spent executing a single job.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)

		schedulerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scheduler_active_workers",
				Help: "Number of workers that have not yet acknowledged the sentinel.",
			},
		)

		schedulerCheckpointSavesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scheduler_checkpoint_saves_total",
				Help: "Checkpoint documents persisted.",
			},
		)

		schedulerDuplicatesRemovedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scheduler_duplicates_removed_total",
				Help: "Output records dropped by the post-run reconciler.",
			},
		)

		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
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

// ObserveDispatch counts a dispatch message.
func ObserveDispatch(sentinel bool) {
	Init()
	kind := "job"
	if sentinel {
		kind = "sentinel"
	}
	schedulerDispatchesTotal.WithLabelValues(kind).Inc()
}

// ObserveResult counts an accepted job result and its duration.
func ObserveResult(outcome string, elapsed time.Duration) {
	Init()
	schedulerResultsTotal.WithLabelValues(outcome).Inc()
	schedulerJobDurationSeconds.Observe(elapsed.Seconds())
}

// SetActiveWorkers sets the active workers gauge.
func SetActiveWorkers(n int) {
	Init()
	schedulerActiveWorkers.Set(float64(n))
}

// ObserveCheckpointSave increments the checkpoint save counter.
func ObserveCheckpointSave() {
	Init()
	schedulerCheckpointSavesTotal.Inc()
}

// ObserveDuplicatesRemoved adds the reconciler's duplicate count.
func ObserveDuplicatesRemoved(n int) {
	Init()
	if n > 0 {
		schedulerDuplicatesRemovedTotal.Add(float64(n))
	}
}

// ObserveCrawl increments the fetch metrics.
func ObserveCrawl(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
