// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal            *prometheus.CounterVec
	fetchBytesTotal               prometheus.Counter
	recordsTotal                  *prometheus.CounterVec
	runsTotal                     *prometheus.CounterVec
	runDurationSeconds            prometheus.Histogram
	rankingFallbackTotal          prometheus.Counter
	proxyPoolSize                 prometheus.Gauge
	proxySourceEntries            *prometheus.GaugeVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	scraperRateLimitDelaysSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetch_attempts_total",
				Help: "Fetch attempts, labeled by egress kind and outcome.",
			},
			[]string{"egress", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_fetch_bytes_total",
				Help: "Total number of body bytes fetched.",
			},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_records_total",
				Help: "Detail pages processed, labeled by outcome (parsed, invalid, fetch_failed).",
			},
			[]string{"outcome"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_runs_total",
				Help: "Pipeline runs, labeled by result.",
			},
			[]string{"result"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_run_duration_seconds",
				Help:    "Histogram of pipeline run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		)

		rankingFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_ranking_fallback_total",
				Help: "Runs that substituted the static seed list for the ranking page.",
			},
		)

		proxyPoolSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_proxy_pool_size",
				Help: "Number of candidates in the most recently loaded proxy pool.",
			},
		)

		proxySourceEntries = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scraper_proxy_source_entries",
				Help: "Entries accepted from each proxy list source on the last load.",
			},
			[]string{"scheme"},
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

		scraperRateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delays_seconds",
				Help:    "Histogram of inter-request wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one transport attempt.
func ObserveFetchAttempt(egress, outcome string, bytesFetched int) {
	Init()
	fetchAttemptsTotal.WithLabelValues(egress, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.Add(float64(bytesFetched))
	}
}

// ObserveRecord counts one detail page outcome.
func ObserveRecord(outcome string) {
	Init()
	recordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records a finished pipeline run.
func ObserveRun(result string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(result).Inc()
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveRankingFallback counts a seed-list substitution.
func ObserveRankingFallback() {
	Init()
	rankingFallbackTotal.Inc()
}

// SetProxyPoolSize records the size of the freshly loaded pool.
func SetProxyPoolSize(n int) {
	Init()
	proxyPoolSize.Set(float64(n))
}

// SetProxySourceEntries records how many entries a source contributed.
func SetProxySourceEntries(scheme string, n int) {
	Init()
	proxySourceEntries.WithLabelValues(scheme).Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of an inter-request wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	scraperRateLimitDelaysSeconds.Observe(duration.Seconds())
}
