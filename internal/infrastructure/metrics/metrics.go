package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsProcessed *prometheus.CounterVec
	TransactionDuration   *prometheus.HistogramVec
	TransactionAmount     *prometheus.HistogramVec
	BalanceConflicts      *prometheus.CounterVec
	DuplicateMessages     prometheus.Counter

	// Batch metrics
	BatchesProcessed prometheus.Counter
	BatchSize        prometheus.Histogram

	// State tracker metrics
	StateTrackerErrors *prometheus.CounterVec
	AuditEventsCreated *prometheus.CounterVec

	// Reconciliation metrics
	ReconciliationMismatches *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics on reg
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransactionsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txconsumer_transactions_processed_total",
				Help: "Total number of transaction events processed by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		TransactionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txconsumer_transaction_duration_seconds",
				Help:    "Duration of transaction handlers",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		TransactionAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txconsumer_transaction_amount",
				Help:    "Committed transaction amounts",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"type"},
		),
		BalanceConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txconsumer_balance_conflicts_total",
				Help: "Balance version conflicts that caused a handler retry",
			},
			[]string{"type"},
		),
		DuplicateMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "txconsumer_duplicate_messages_total",
			Help: "Messages skipped because their source object was already processed",
		}),
		BatchesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "txconsumer_batches_processed_total",
			Help: "Total number of message batches processed",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txconsumer_batch_size",
			Help:    "Number of messages per batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		StateTrackerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txconsumer_state_tracker_errors_total",
				Help: "Failures writing object state or audit rows",
			},
			[]string{"operation"},
		),
		AuditEventsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txconsumer_audit_events_total",
				Help: "Total number of audit events appended",
			},
			[]string{"event_type"},
		),
		ReconciliationMismatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txconsumer_reconciliation_mismatches_total",
				Help: "Balances that differ from the sum of their event log",
			},
			[]string{"kind"},
		),
	}
}
