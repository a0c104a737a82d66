package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mutations counts guest-list mutations by operation and outcome
	// (ok|rolled_back|rejected).
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatplan_mutations_total",
			Help: "Total number of guest-list mutations",
		},
		[]string{"op", "outcome"},
	)

	// Reloads counts full guest-list recomputations by trigger (mutation|invalidation|startup).
	Reloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatplan_reloads_total",
			Help: "Total number of full guest-list reloads",
		},
		[]string{"trigger", "result"},
	)

	// ReloadDuration measures how long a full reload takes.
	ReloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seatplan_reload_duration_seconds",
			Help:    "Duration of full guest-list reloads",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SeatingRejections counts rejected seating operations by reason.
	SeatingRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatplan_seating_rejections_total",
			Help: "Total number of rejected seating operations",
		},
		[]string{"reason"},
	)

	// SeatedGuests tracks the number of persons currently assigned to a table.
	SeatedGuests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seatplan_seated_guests",
			Help: "Number of persons assigned to a table",
		},
	)

	// RealtimeClients tracks connected websocket clients.
	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seatplan_realtime_clients",
			Help: "Number of connected realtime clients",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seatplan_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
