package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_transitions_total",
			Help: "Committed booking transitions by action",
		},
		[]string{"action"},
	)

	IllegalTransitionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_illegal_transitions_total",
			Help: "Transition requests rejected by the state machine",
		},
	)

	OverlapRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_overlap_rejections_total",
			Help: "Transition requests rejected by the overlap detector",
		},
	)

	LockConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_lock_conflicts_total",
			Help: "Optimistic-lock conflicts on booking writes",
		},
	)

	RetryJobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_retry_jobs_enqueued_total",
			Help: "Retry jobs enqueued by type",
		},
		[]string{"type"},
	)

	RetryJobsDeadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_retry_jobs_dead_total",
			Help: "Retry jobs that exhausted their attempts",
		},
	)

	TransitionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reservation_transition_duration_seconds",
			Help:    "End-to-end duration of transition requests",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(
		TransitionsTotal,
		IllegalTransitionsTotal,
		OverlapRejectionsTotal,
		LockConflictsTotal,
		RetryJobsEnqueuedTotal,
		RetryJobsDeadTotal,
		TransitionDuration,
	)
}
