// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DonationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zerohunger_donation_transitions_total",
			Help: "Donation lifecycle actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	CollectRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zerohunger_collect_retries_total",
			Help: "Collect attempts retried after an optimistic version conflict",
		},
	)

	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zerohunger_auth_attempts_total",
			Help: "Login and second factor attempts by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zerohunger_event_publish_errors_total",
			Help: "Lifecycle events that could not be published",
		},
	)

	LocationSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zerohunger_location_subscribers",
			Help: "Open websocket connections on the location feed",
		},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zerohunger_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"route", "code"},
	)
)

// Outcome labels.
const (
	OK       = "ok"
	Rejected = "rejected"
	Failed   = "failed"
	Locked   = "locked"
)
