// Package metrics exposes Prometheus counters for HTTP traffic and review
// submissions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	requests         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	reviewsSubmitted prometheus.Counter
	reviewsRejected  *prometheus.CounterVec
	reg              prometheus.Registerer
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archive_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archive_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reviewsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_reviews_submitted_total",
			Help: "Reviews stored successfully.",
		}),
		reviewsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archive_reviews_rejected_total",
			Help: "Review submissions rejected, by error code.",
		}, []string{"code"}),
		reg: reg,
	}

	reg.MustRegister(c.requests, c.latency, c.reviewsSubmitted, c.reviewsRejected)
	return c
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordReviewSubmitted() {
	c.reviewsSubmitted.Inc()
}

func (c *Collector) RecordReviewRejected(code string) {
	c.reviewsRejected.WithLabelValues(code).Inc()
}

// WatchLiveClients exports fn as the current number of live feed clients.
func (c *Collector) WatchLiveClients(fn func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "archive_live_clients",
		Help: "Connected live review feed clients.",
	}, func() float64 { return float64(fn()) }))
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
