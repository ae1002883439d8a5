package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec

	// Withdrawal Metrics
	withdrawalsTotal         *prometheus.CounterVec
	withdrawalStageDuration  *prometheus.HistogramVec
	withdrawalAmountLamports prometheus.Histogram
	withdrawalFailuresTotal  *prometheus.CounterVec
	confirmationDuration     *prometheus.HistogramVec
	reconciliationsTotal     *prometheus.CounterVec
	withdrawalsInFlight      prometheus.Gauge

	// Workflow Metrics
	workflowStartsTotal *prometheus.CounterVec
	activityDuration    *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),

		// Withdrawal Metrics
		withdrawalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "withdrawals_total",
				Help: "Total number of withdrawals by final outcome",
			},
			[]string{"network", "outcome"},
		),
		withdrawalStageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "withdrawal_stage_duration_seconds",
				Help:    "Duration of each withdrawal pipeline stage in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
			},
			[]string{"stage", "status"},
		),
		withdrawalAmountLamports: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "withdrawal_amount_lamports",
				Help:    "Amount of submitted withdrawals in lamports",
				Buckets: prometheus.ExponentialBuckets(1000, 10, 10),
			},
		),
		withdrawalFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "withdrawal_failures_total",
				Help: "Total number of failed withdrawals by stage and error kind",
			},
			[]string{"stage", "kind"},
		),
		confirmationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "withdrawal_confirmation_duration_seconds",
				Help:    "Time from submission until a confirmation result in seconds",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 120},
			},
			[]string{"result"},
		),
		reconciliationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "withdrawal_reconciliations_total",
				Help: "Total number of reconciliation checks for unconfirmed withdrawals",
			},
			[]string{"result"},
		),
		withdrawalsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "withdrawals_in_flight",
				Help: "Number of withdrawals currently being processed",
			},
		),

		// Workflow Metrics
		workflowStartsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "withdrawal_workflow_starts_total",
				Help: "Total number of withdrawal workflows dispatched, by status",
			},
			[]string{"status"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "withdrawal_activity_duration_seconds",
				Help:    "Duration of withdrawal workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10, 30, 60},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	if m == nil {
		return
	}
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// Withdrawal metric helpers

// RecordWithdrawal records the final outcome of a withdrawal.
func (m *Metrics) RecordWithdrawal(network, outcome string) {
	if m == nil {
		return
	}
	m.withdrawalsTotal.WithLabelValues(network, outcome).Inc()
}

// RecordWithdrawalStage records how long a pipeline stage took.
func (m *Metrics) RecordWithdrawalStage(stage string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.withdrawalStageDuration.WithLabelValues(stage, status).Observe(duration)
}

// RecordWithdrawalAmount records the amount of a submitted withdrawal.
func (m *Metrics) RecordWithdrawalAmount(lamports uint64) {
	if m == nil {
		return
	}
	m.withdrawalAmountLamports.Observe(float64(lamports))
}

// RecordWithdrawalFailure records a failure at stage with the error kind.
func (m *Metrics) RecordWithdrawalFailure(stage, kind string) {
	if m == nil {
		return
	}
	m.withdrawalFailuresTotal.WithLabelValues(stage, kind).Inc()
}

// RecordConfirmation records the result of waiting for confirmation:
// "confirmed", "failed" or "timeout".
func (m *Metrics) RecordConfirmation(result string, duration float64) {
	if m == nil {
		return
	}
	m.confirmationDuration.WithLabelValues(result).Observe(duration)
}

// RecordReconciliation records a reconciliation check.
func (m *Metrics) RecordReconciliation(result string) {
	if m == nil {
		return
	}
	m.reconciliationsTotal.WithLabelValues(result).Inc()
}

// WithdrawalStarted increments the in-flight gauge. Call the returned func
// when processing ends.
func (m *Metrics) WithdrawalStarted() func() {
	if m == nil {
		return func() {}
	}
	m.withdrawalsInFlight.Inc()
	return m.withdrawalsInFlight.Dec
}

// Workflow metric helpers

// RecordWorkflowStart records an attempt to dispatch a withdrawal workflow.
func (m *Metrics) RecordWorkflowStart(err error) {
	if m == nil {
		return
	}
	status := "started"
	if err != nil {
		status = "error"
	}
	m.workflowStartsTotal.WithLabelValues(status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.activityDuration.WithLabelValues(activity, status).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
