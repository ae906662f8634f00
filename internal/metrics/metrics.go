package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presales_turns_total",
			Help: "Total number of processed chat turns by response branch",
		},
		[]string{"branch"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "presales_turn_duration_seconds",
			Help:    "Duration of chat turn processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"branch"},
	)

	CompletionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presales_completion_failures_total",
			Help: "Total number of failed completion calls",
		},
		[]string{"caller"},
	)

	ExtractionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presales_extraction_outcomes_total",
			Help: "Entity extraction results by kind, strategy and outcome",
		},
		[]string{"kind", "strategy", "outcome"},
	)

	LeadsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presales_leads_stored_total",
			Help: "Total number of lead writes",
		},
		[]string{"result"},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presales_persistence_failures_total",
			Help: "Total number of failed persistence operations",
		},
		[]string{"operation"},
	)

	DispatcherQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presales_dispatcher_queued_jobs",
			Help: "Number of turns waiting in the dispatcher",
		},
	)
)
