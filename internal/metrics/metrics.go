// Package metrics exposes Prometheus collectors for the movierank service.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	importBatchesTotal         *prometheus.CounterVec
	importDurationSeconds      *prometheus.HistogramVec
	importMoviesTotal          *prometheus.CounterVec
	scrapeMoviesTotal          *prometheus.CounterVec
	scrapeFetchesTotal         *prometheus.CounterVec
	artifactsWrittenTotal      *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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

		importBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movierank_import_batches_total",
				Help: "Total number of import batches, labeled by status.",
			},
			[]string{"status"},
		)

		importDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "movierank_import_duration_seconds",
				Help:    "Histogram of import batch durations, labeled by status.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"status"},
		)

		importMoviesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movierank_import_movies_total",
				Help: "Total number of movies touched by committed imports, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scrapeMoviesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movierank_scrape_movies_total",
				Help: "Total number of scraped movie items, labeled by country and status.",
			},
			[]string{"country", "status"},
		)

		scrapeFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movierank_scrape_fetches_total",
				Help: "Total number of page fetches by the scraper, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		artifactsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "movierank_artifacts_written_total",
				Help: "Total number of artifacts written to blob storage, labeled by kind.",
			},
			[]string{"kind"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "movierank_scrape_rate_limit_delay_seconds",
				Help:    "Histogram of scraper rate limit waits, labeled by site.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
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
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveImport records one import batch ("committed" or "failed").
func ObserveImport(status string, duration time.Duration) {
	Init()
	importBatchesTotal.WithLabelValues(status).Inc()
	importDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveMovieOutcome adds n movies to the outcome counter.
func ObserveMovieOutcome(outcome string, n int) {
	if n <= 0 {
		return
	}
	Init()
	importMoviesTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveScrape counts one scraped movie item for a country.
func ObserveScrape(country, status string) {
	Init()
	scrapeMoviesTotal.WithLabelValues(country, status).Inc()
}

// ObserveFetch counts one page fetch against the host of rawURL.
func ObserveFetch(rawURL, status string) {
	Init()
	scrapeFetchesTotal.WithLabelValues(SanitizeSite(rawURL), status).Inc()
}

// ObserveArtifact counts one artifact (snapshot, report) written to blob storage.
func ObserveArtifact(kind string) {
	Init()
	artifactsWrittenTotal.WithLabelValues(kind).Inc()
}

// ObserveRateLimitDelay records how long the scraper waited before loading a page.
func ObserveRateLimitDelay(site string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(d.Seconds())
}
