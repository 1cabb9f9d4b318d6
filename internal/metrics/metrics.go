package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PurchaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_purchase_transitions_total",
			Help: "Purchase state transitions",
		},
		[]string{"state"},
	)

	CommitAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_commit_attempts_total",
			Help: "Ledger commit attempts by outcome",
		},
		[]string{"outcome"},
	)

	CommissionsCredited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_commissions_credited_total",
			Help: "Commissions written to the ledger",
		},
		[]string{"level"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_events_total",
			Help: "Earnings events by delivery outcome",
		},
		[]string{"sink", "outcome"},
	)

	PurchaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "referral_purchase_duration_seconds",
			Help:    "Histogram of purchase processing time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"state"},
	)

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)
