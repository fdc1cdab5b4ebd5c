// Package metrics exposes Prometheus collectors for the crawl scheduler.
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
	crawlJobsTotal             *prometheus.CounterVec
	crawlRecordsTotal          *prometheus.CounterVec
	crawlFetchDurationSeconds  *prometheus.HistogramVec
	crawlErrorsTotal           *prometheus.CounterVec
	crawlActiveWorkers         prometheus.Gauge
	crawlQueueDepth            prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_jobs_total",
				Help: "Total number of crawl jobs finished, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		crawlRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_records_total",
				Help: "Total number of observations fetched, labeled by source.",
			},
			[]string{"source"},
		)

		crawlFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawl_fetch_duration_seconds",
				Help:    "Histogram of provider fetch latencies, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		crawlErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_errors_total",
				Help: "Total number of crawl failures, labeled by source and error kind.",
			},
			[]string{"source", "kind"},
		)

		crawlActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawl_active_workers",
				Help: "Number of workers currently running a fetch.",
			},
		)

		crawlQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawl_queue_depth",
				Help: "Number of jobs waiting in the scheduler queue.",
			},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCrawl records one finished crawl job.
func ObserveCrawl(source, status string, records int, duration time.Duration) {
	crawlJobsTotal.WithLabelValues(source, status).Inc()
	crawlFetchDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
	if records > 0 {
		crawlRecordsTotal.WithLabelValues(source).Add(float64(records))
	}
}

// ObserveCrawlError increments the failure counter for the given error kind.
func ObserveCrawlError(source, kind string) {
	crawlErrorsTotal.WithLabelValues(source, kind).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given source and status.
func ObserveJob(source, status string) {
	crawlJobsTotal.WithLabelValues(source, status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	crawlActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	crawlActiveWorkers.Dec()
}

// SetQueueDepth records the current scheduler queue length.
func SetQueueDepth(n int) {
	crawlQueueDepth.Set(float64(n))
}
