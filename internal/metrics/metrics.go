// Package metrics holds the Prometheus collectors exported by the dashboard.
//
// Collectors are registered on the default registry at init and served by
// Handler under /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "occupancy"

// Fetch outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded"
)

// Poll tick actions.
const (
	TickFetched  = "fetched"
	TickAbsorbed = "absorbed"
)

var (
	// FetchTotal counts completed fetches by outcome.
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Completed time-series fetches, labelled by outcome.",
	}, []string{"outcome"})

	// FetchDuration observes fetch latency by outcome.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of time-series fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// PollTicks counts timer ticks by what the poller did with them.
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_ticks_total",
		Help:      "Poll timer ticks, labelled by whether a fetch started or the tick was absorbed.",
	}, []string{"action"})

	// SamplesDropped counts malformed rows rejected at the client boundary.
	SamplesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_dropped_total",
		Help:      "Rows dropped because their time or value was missing or not numeric.",
	}, []string{"backend"})

	// ActiveSamples reports the sample count of the active cache entry.
	ActiveSamples = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_samples",
		Help:      "Samples held by the active cache entry.",
	})

	// ActiveRangeHours reports the selected window.
	ActiveRangeHours = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_range_hours",
		Help:      "Currently selected window in hours.",
	})

	// WebSocketClients reports connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Connected WebSocket clients.",
	})

	// HTTPRequests counts API requests by status code and method.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests processed, labelled by status code and method.",
	}, []string{"code", "method"})
)

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
