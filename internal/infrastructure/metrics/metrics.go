package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Operation metrics
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec

	// Distribution metrics
	DistributionsTotal prometheus.Counter
	DistributedAmount  prometheus.Histogram
	RefundsTotal       *prometheus.CounterVec

	// Withdrawal metrics
	WithdrawalTransitions *prometheus.CounterVec
	WithdrawalAmount      prometheus.Histogram

	// Account metrics
	AccountsCreated    *prometheus.CounterVec
	AdjustmentsTotal   *prometheus.CounterVec
	ReportCacheLookups *prometheus.CounterVec

	// Reconciliation metrics
	ReconciliationDiscrepancies prometheus.Gauge

	// Outbox metrics
	OutboxPublished *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec

	// Database metrics
	TxRetries *prometheus.CounterVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics and registers them with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	amountBuckets := []float64{1, 10, 50, 100, 500, 1000, 10000, 100000}

	return &Metrics{
		// Operation metrics
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketledger_operation_duration_seconds",
				Help:    "Duration of billing operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_operation_errors_total",
				Help: "Total number of failed billing operations by error type",
			},
			[]string{"operation", "error_type"},
		),

		// Distribution metrics
		DistributionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketledger_distributions_total",
			Help: "Total number of purchases distributed",
		}),
		DistributedAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketledger_distributed_amount",
			Help:    "Gross amounts of distributed purchases",
			Buckets: amountBuckets,
		}),
		RefundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_refunds_total",
				Help: "Total number of refunds by outcome",
			},
			[]string{"outcome"},
		),

		// Withdrawal metrics
		WithdrawalTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_withdrawal_transitions_total",
				Help: "Total withdrawal state transitions by target status",
			},
			[]string{"status"},
		),
		WithdrawalAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketledger_withdrawal_amount",
			Help:    "Requested withdrawal amounts",
			Buckets: amountBuckets,
		}),

		// Account metrics
		AccountsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_accounts_created_total",
				Help: "Total number of billing accounts created",
			},
			[]string{"account_type"},
		),
		AdjustmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_adjustments_total",
				Help: "Total manual balance adjustments by direction",
			},
			[]string{"direction"},
		),
		ReportCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_report_cache_lookups_total",
				Help: "Earnings report cache lookups by result",
			},
			[]string{"result"},
		),

		// Reconciliation metrics
		ReconciliationDiscrepancies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "marketledger_reconciliation_discrepancies",
			Help: "Accounts whose balance differed from the log in the last reconciliation",
		}),

		// Outbox metrics
		OutboxPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_outbox_events_total",
				Help: "Outbox events relayed by result",
			},
			[]string{"result"},
		),

		// Authentication metrics
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"path"},
		),

		// Audit metrics
		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),

		// Database metrics
		TxRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketledger_tx_retries_total",
				Help: "Transactions re-run after a retryable database error",
			},
			[]string{"reason"},
		),
	}
}
