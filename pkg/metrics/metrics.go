// Package metrics registers the registry's Prometheus collectors and
// serves the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry activity
	PublishesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raktar_publishes_total",
			Help: "Total number of successful crate publishes",
		},
	)

	DownloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raktar_downloads_total",
			Help: "Total number of crate archive downloads",
		},
	)

	IndexLookupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raktar_index_lookups_total",
			Help: "Total number of index document lookups",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raktar_http_requests_total",
			Help: "Total number of HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raktar_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		PublishesTotal,
		DownloadsTotal,
		IndexLookupsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
