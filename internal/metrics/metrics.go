// Package metrics exposes Prometheus collectors for the monitor service.
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
	monitorCyclesTotal          *prometheus.CounterVec
	monitorChangesTotal         *prometheus.CounterVec
	monitorNotificationsTotal   *prometheus.CounterVec
	monitorRecipientsTotal      prometheus.Counter
	monitorFetchDurationSeconds *prometheus.HistogramVec
	monitorFetchBytesTotal      *prometheus.CounterVec
	monitorRunning              prometheus.Gauge
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	httpThrottledTotal          *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		monitorCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edital_monitor_cycles_total",
				Help: "Total number of poll cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		monitorChangesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edital_monitor_changes_total",
				Help: "Total number of content changes detected, labeled by site.",
			},
			[]string{"site"},
		)

		monitorNotificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edital_monitor_notifications_total",
				Help: "Total number of notification attempts, labeled by result.",
			},
			[]string{"result"},
		)

		monitorRecipientsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "edital_monitor_notification_recipients_total",
				Help: "Total number of recipients that received an alert.",
			},
		)

		monitorFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edital_monitor_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site and status.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site", "status"},
		)

		monitorFetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edital_monitor_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		monitorRunning = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "edital_monitor_running",
				Help: "1 while a polling generation is active.",
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

		httpThrottledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_throttled_requests_total",
				Help: "Total number of HTTP requests rejected by rate limiting, labeled by route.",
			},
			[]string{"route"},
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

// ObserveCycle counts one finished poll cycle.
func ObserveCycle(outcome string) {
	monitorCyclesTotal.WithLabelValues(outcome).Inc()
}

// ObserveChange counts a detected content change.
func ObserveChange(site string) {
	monitorChangesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveNotification counts a notification attempt and its delivered recipients.
func ObserveNotification(result string, delivered int) {
	monitorNotificationsTotal.WithLabelValues(result).Inc()
	if delivered > 0 {
		monitorRecipientsTotal.Add(float64(delivered))
	}
}

// ObserveFetch records the latency and size of a page fetch.
func ObserveFetch(site string, status string, duration time.Duration, bytesFetched int) {
	sanitizedSite := SanitizeSite(site)
	monitorFetchDurationSeconds.WithLabelValues(sanitizedSite, status).Observe(duration.Seconds())
	if bytesFetched > 0 {
		monitorFetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// SetRunning flips the running gauge.
func SetRunning(running bool) {
	if running {
		monitorRunning.Set(1)
		return
	}
	monitorRunning.Set(0)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveThrottled counts a request rejected by a rate limiter.
func ObserveThrottled(route string) {
	httpThrottledTotal.WithLabelValues(route).Inc()
}
