package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fare_ledger_mutations_total",
			Help: "Total number of balance operations by type and outcome",
		},
		[]string{"operation", "outcome"},
	)

	QueueReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fare_queue_replays_total",
			Help: "Total number of offline queue replay attempts by outcome",
		},
		[]string{"outcome"},
	)

	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fare_sync_cycles_total",
			Help: "Total number of reconciliation cycles by result",
		},
		[]string{"result"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fare_queue_entries",
			Help: "Current number of offline queue entries by status",
		},
		[]string{"status"},
	)

	LedgerDriftPassengers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fare_ledger_drift_passengers",
			Help: "Passengers whose balance snapshot disagreed with the ledger at the last verification",
		},
	)
)

// Mutation outcomes.
const (
	OutcomeApplied      = "applied"
	OutcomeReplayed     = "replayed"
	OutcomeRejected     = "rejected"
	OutcomeInsufficient = "insufficient_balance"
	OutcomeStorage      = "storage_failure"
	OutcomeQueued       = "queued"
)

func ObserveHTTPRequest(method, path, status string, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func RecordMutation(operation, outcome string) {
	LedgerMutationsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordReplay(outcome string) {
	QueueReplaysTotal.WithLabelValues(outcome).Inc()
}

func RecordSyncCycle(result string) {
	SyncCyclesTotal.WithLabelValues(result).Inc()
}

// SetQueueDepth publishes the per-status entry counts. Missing statuses are reported as zero.
func SetQueueDepth(counts map[string]int) {
	for _, status := range []string{"pending", "processing", "failed"} {
		QueueDepth.WithLabelValues(status).Set(float64(counts[status]))
	}
}

func SetLedgerDrift(passengers int) {
	LedgerDriftPassengers.Set(float64(passengers))
}
