// Package metrics wires Prometheus collectors for the quota core and
// background workers, grounded on the teacher's promauto usage pattern in
// pkg/metrics/prometheus (that package was dropped along with the NFS cache
// layer it instrumented; this is a fresh registry serving this domain).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the process-wide collector registry served at GET /metrics.
var Registry = prometheus.NewRegistry()

var (
	// QuotaReservedBytes tracks the in-flight reservation per user.
	QuotaReservedBytes = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photosync_quota_reserved_bytes",
			Help: "Bytes currently reserved (in-flight, not yet committed) per user.",
		},
		[]string{"user_id"},
	)

	// QuotaUsedBytes tracks the committed usage per user as last computed.
	QuotaUsedBytes = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photosync_quota_used_bytes",
			Help: "Bytes committed to storage per user, as of the last reservation check.",
		},
		[]string{"user_id"},
	)

	// WorkerRunsTotal counts background worker executions by outcome.
	WorkerRunsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosync_worker_runs_total",
			Help: "Total background worker runs by worker name and outcome.",
		},
		[]string{"worker", "outcome"},
	)

	// WorkerDurationSeconds observes how long each worker run took.
	WorkerDurationSeconds = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photosync_worker_duration_seconds",
			Help:    "Duration of background worker runs in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker"},
	)
)
