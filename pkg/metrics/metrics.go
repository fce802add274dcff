// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cctp"

var (
	// QuotesTotal counts quote attempts by route and outcome.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quotes_total",
		Help:      "Quote requests by route and result.",
	}, []string{"route", "result"})

	// TrackerTransitions counts receipt state changes.
	TrackerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tracker_transitions_total",
		Help:      "Transfer receipt state transitions.",
	}, []string{"protocol", "to"})

	// UpstreamDuration records latency of calls to Circle, the executor API
	// and chain RPCs.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latency of upstream HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "endpoint", "status"})

	// HTTPRequests counts API requests served.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by route and status code.",
	}, []string{"method", "route", "status"})

	// PendingReceipts is the number of receipts the watcher is following.
	PendingReceipts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_receipts",
		Help:      "Receipts awaiting a terminal state.",
	})
)

// ObserveUpstream records one upstream call. status is the HTTP status code,
// or 0 when the request never got a response.
func ObserveUpstream(service, endpoint string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamDuration.WithLabelValues(service, endpoint, label).Observe(elapsed.Seconds())
}
