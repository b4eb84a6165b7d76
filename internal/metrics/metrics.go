package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Workflow execution metrics
	WorkflowExecutionsTotal   *prometheus.CounterVec
	WorkflowExecutionDuration *prometheus.HistogramVec
	WorkflowExecutionsActive  *prometheus.GaugeVec

	// Node invocation metrics
	NodeInvocationsTotal   *prometheus.CounterVec
	NodeInvocationDuration *prometheus.HistogramVec

	// Scheduler metrics
	ScheduledJobsActive prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Expression evaluation metrics
	ExprEvaluationsTotal   *prometheus.CounterVec
	ExprEvaluationDuration *prometheus.HistogramVec

	// Webhook dispatch metrics
	WebhookDeliveriesTotal  *prometheus.CounterVec
	WebhookDeliveryDuration *prometheus.HistogramVec

	// Database metrics
	DBConnectionsOpen  *prometheus.GaugeVec
	DBConnectionsIdle  *prometheus.GaugeVec
	DBConnectionsInUse *prometheus.GaugeVec
	DBQueryDuration    *prometheus.HistogramVec
	DBQueriesTotal     *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all collectors initialized
func NewMetrics() *Metrics {
	return &Metrics{
		WorkflowExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_workflow_executions_total",
				Help: "Total number of workflow executions by status and trigger type",
			},
			[]string{"tenant_id", "workflow_id", "trigger_type", "status"},
		),
		WorkflowExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_workflow_execution_duration_seconds",
				Help:    "Workflow execution duration in seconds by trigger type",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"tenant_id", "workflow_id", "trigger_type"},
		),
		WorkflowExecutionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loom_workflow_executions_active",
				Help: "Number of currently active workflow executions",
			},
			[]string{"tenant_id", "workflow_id", "trigger_type"},
		),
		NodeInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_node_invocations_total",
				Help: "Total number of node invocations by node type and outcome",
			},
			[]string{"tenant_id", "workflow_id", "node_type", "edge"},
		),
		NodeInvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_node_invocation_duration_seconds",
				Help:    "Node invocation duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tenant_id", "workflow_id", "node_type"},
		),
		ScheduledJobsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "loom_scheduled_jobs_active",
				Help: "Number of cron-scheduled automations currently armed",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ExprEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_expr_evaluations_total",
				Help: "Total number of expression evaluations by status",
			},
			[]string{"status"},
		),
		ExprEvaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_expr_evaluation_duration_seconds",
				Help:    "Expression evaluation duration in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{},
		),
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_webhook_deliveries_total",
				Help: "Total number of inbound webhook triggers by automation and status",
			},
			[]string{"automation_id", "status"},
		),
		WebhookDeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_webhook_delivery_duration_seconds",
				Help:    "Time from inbound webhook receipt to triggered workflow start",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"automation_id"},
		),
		DBConnectionsOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loom_db_connections_open",
				Help: "Number of open database connections",
			},
			[]string{"pool"},
		),
		DBConnectionsIdle: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loom_db_connections_idle",
				Help: "Number of idle database connections",
			},
			[]string{"pool"},
		),
		DBConnectionsInUse: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loom_db_connections_in_use",
				Help: "Number of database connections in use",
			},
			[]string{"pool"},
		),
		DBQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"operation", "table"},
		),
		DBQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_db_queries_total",
				Help: "Total number of database queries by operation and status",
			},
			[]string{"operation", "table", "status"},
		),
	}
}

// Register registers all metrics with the provided registry
func (m *Metrics) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		m.WorkflowExecutionsTotal,
		m.WorkflowExecutionDuration,
		m.WorkflowExecutionsActive,
		m.NodeInvocationsTotal,
		m.NodeInvocationDuration,
		m.ScheduledJobsActive,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ExprEvaluationsTotal,
		m.ExprEvaluationDuration,
		m.WebhookDeliveriesTotal,
		m.WebhookDeliveryDuration,
		m.DBConnectionsOpen,
		m.DBConnectionsIdle,
		m.DBConnectionsInUse,
		m.DBQueryDuration,
		m.DBQueriesTotal,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// RecordWorkflowExecution records a workflow execution with status and duration
func (m *Metrics) RecordWorkflowExecution(tenantID, workflowID, triggerType, status string, durationSeconds float64) {
	m.WorkflowExecutionsTotal.WithLabelValues(tenantID, workflowID, triggerType, status).Inc()
	m.WorkflowExecutionDuration.WithLabelValues(tenantID, workflowID, triggerType).Observe(durationSeconds)
}

// IncActiveWorkflowExecutions increments the active workflow executions gauge
func (m *Metrics) IncActiveWorkflowExecutions(tenantID, workflowID, triggerType string) {
	m.WorkflowExecutionsActive.WithLabelValues(tenantID, workflowID, triggerType).Inc()
}

// DecActiveWorkflowExecutions decrements the active workflow executions gauge
func (m *Metrics) DecActiveWorkflowExecutions(tenantID, workflowID, triggerType string) {
	m.WorkflowExecutionsActive.WithLabelValues(tenantID, workflowID, triggerType).Dec()
}

// RecordNodeInvocation records a single node invocation, labeled by the
// edge it fired (or "none" when the node had no matching edge).
func (m *Metrics) RecordNodeInvocation(tenantID, workflowID, nodeType, edge string, durationSeconds float64) {
	m.NodeInvocationsTotal.WithLabelValues(tenantID, workflowID, nodeType, edge).Inc()
	m.NodeInvocationDuration.WithLabelValues(tenantID, workflowID, nodeType).Observe(durationSeconds)
}

// SetScheduledJobCount sets the scheduled-jobs-active gauge.
func (m *Metrics) SetScheduledJobCount(count float64) {
	m.ScheduledJobsActive.Set(count)
}

// RecordHTTPRequest records an HTTP request with method, path, status, and duration
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// RecordExprEvaluation records an expression evaluation with status and duration
func (m *Metrics) RecordExprEvaluation(status string, durationSeconds float64) {
	m.ExprEvaluationsTotal.WithLabelValues(status).Inc()
	m.ExprEvaluationDuration.WithLabelValues().Observe(durationSeconds)
}

// RecordWebhookDelivery records an inbound webhook trigger for an automation.
func (m *Metrics) RecordWebhookDelivery(automationID, status string, durationSeconds float64) {
	m.WebhookDeliveriesTotal.WithLabelValues(automationID, status).Inc()
	m.WebhookDeliveryDuration.WithLabelValues(automationID).Observe(durationSeconds)
}

// SetDBConnectionPoolStats sets database connection pool statistics
func (m *Metrics) SetDBConnectionPoolStats(poolName string, open, idle, inUse int) {
	m.DBConnectionsOpen.WithLabelValues(poolName).Set(float64(open))
	m.DBConnectionsIdle.WithLabelValues(poolName).Set(float64(idle))
	m.DBConnectionsInUse.WithLabelValues(poolName).Set(float64(inUse))
}

// RecordDBQuery records a database query with operation, table, status, and duration
func (m *Metrics) RecordDBQuery(operation, table, status string, durationSeconds float64) {
	m.DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(durationSeconds)
}
