package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Gateway metrics
	MessagesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_messages_submitted_total",
			Help: "Messages appended to a room",
		},
	)

	SubmitFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_submit_failures_total",
			Help: "Submissions rejected by validation or the store",
		},
	)

	SnapshotsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_snapshots_delivered_total",
			Help: "Live query snapshots produced for subscribers",
		},
	)

	SnapshotErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_snapshot_errors_total",
			Help: "Live query snapshots that failed to load",
		},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomchat_active_subscriptions",
			Help: "Open live query subscriptions",
		},
	)

	// Room view metrics
	SendOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_send_outcomes_total",
			Help: "Send attempts by outcome",
		},
		[]string{"outcome"}, // submitted, truncated, redirected, skipped, failed
	)
)
