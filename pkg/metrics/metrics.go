package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanAttempts records scan attempts by outcome (accepted plus each rejection kind).
	ScanAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymstack_scan_attempts_total",
			Help: "Total number of check-in scan attempts",
		},
		[]string{"result"},
	)

	// Enrollments counts enrollment attempts and their outcome (enrolled|waitlisted|rejected).
	Enrollments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymstack_enrollments_total",
			Help: "Total number of class enrollment attempts",
		},
		[]string{"result"},
	)

	// WaitlistPromotions counts members promoted from a waitlist into a roster.
	WaitlistPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymstack_waitlist_promotions_total",
			Help: "Total number of waitlist promotions",
		},
	)

	// OpenCheckInSessions tracks check-in tokens that are currently usable.
	OpenCheckInSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gymstack_open_checkin_sessions",
			Help: "Number of open check-in sessions",
		},
	)

	// TokensPurged counts tokens removed by the maintenance sweep.
	TokensPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymstack_tokens_purged_total",
			Help: "Total number of dead check-in tokens removed by maintenance",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gymstack_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
