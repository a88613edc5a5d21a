// Package metrics exposes Prometheus collectors for the scraper service.
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
	scrapePagesTotal           *prometheus.CounterVec
	scrapeProductsTotal        *prometheus.CounterVec
	scrapeImagesTotal          *prometheus.CounterVec
	scrapeJobsTotal            *prometheus.CounterVec
	scrapeJobDurationSeconds   *prometheus.HistogramVec
	scrapeActiveWorkers        prometheus.Gauge
	inferenceRequestsTotal     *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_pages_total",
				Help: "Total number of pages crawled, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		scrapeProductsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_products_total",
				Help: "Total number of products, labeled by site and stage.",
			},
			[]string{"site", "stage"},
		)

		scrapeImagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_images_total",
				Help: "Total number of product images downloaded, labeled by site.",
			},
			[]string{"site"},
		)

		scrapeJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_jobs_total",
				Help: "Total number of scrape jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		scrapeJobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_job_duration_seconds",
				Help:    "Histogram of scrape job wall time, labeled by status.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		)

		scrapeActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_active_workers",
				Help: "Number of workers currently processing a page.",
			},
		)

		inferenceRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inference_requests_total",
				Help: "Total attribute inference runs, labeled by source.",
			},
			[]string{"source"},
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

// ObservePage increments the page counter for a crawl outcome.
func ObservePage(site, outcome string) {
	scrapePagesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveProduct increments the product counter for a pipeline stage.
func ObserveProduct(site, stage string) {
	scrapeProductsTotal.WithLabelValues(SanitizeSite(site), stage).Inc()
}

// ObserveImages adds downloaded image counts for a site.
func ObserveImages(site string, n int) {
	if n > 0 {
		scrapeImagesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(n))
	}
}

// ObserveJob records a finished job with its wall time.
func ObserveJob(status string, duration time.Duration) {
	scrapeJobsTotal.WithLabelValues(status).Inc()
	scrapeJobDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveInference increments the inference counter for a source branch.
func ObserveInference(source string) {
	inferenceRequestsTotal.WithLabelValues(source).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	scrapeActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	scrapeActiveWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
