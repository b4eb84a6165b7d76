// Package execstore persists workflow and automation executions: the
// write path (§4.E create/complete/append-log) and the read path (get,
// filtered list, and the derived timeline/state-diff/stats views), all
// reconstructible from the raw stored rows.
package execstore

import (
	"encoding/json"
	"time"

	"github.com/loomwork/loom/internal/interpreter"
)

// Status mirrors the monotone Execution Record lifecycle of §3:
// pending -> running -> (completed | failed).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TriggeredBy names how an execution was started.
type TriggeredBy string

const (
	TriggeredManual    TriggeredBy = "manual"
	TriggeredAutomation TriggeredBy = "automation"
	TriggeredWebhook   TriggeredBy = "webhook"
	TriggeredAPI       TriggeredBy = "api"
)

// ExecutionRecord is one persisted workflow run (§3 Execution Record).
// JSON columns carry opaque blobs as json.RawMessage so the repository
// never needs to know a node's output shape.
type ExecutionRecord struct {
	ID            string          `db:"id" json:"id"`
	WorkflowID    string          `db:"workflow_id" json:"workflowId"`
	TenantID      string          `db:"tenant_id" json:"tenantId"`
	Status        Status          `db:"status" json:"status"`
	TriggeredBy   TriggeredBy     `db:"triggered_by" json:"triggeredBy"`
	InitialState  json.RawMessage `db:"initial_state" json:"initialState"`
	FinalState    json.RawMessage `db:"final_state" json:"finalState,omitempty"`
	Result        json.RawMessage `db:"result" json:"result,omitempty"`
	Error         string          `db:"error" json:"error,omitempty"`
	FailedNodeID  string          `db:"failed_node_id" json:"failedNodeId,omitempty"`
	NodeLogs      json.RawMessage `db:"node_logs" json:"nodeLogs"`
	StartedAt     time.Time       `db:"started_at" json:"startedAt"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completedAt,omitempty"`

	// AutomationID, TriggerSource and TriggerData promote this row to an
	// Automation Execution (§3) when non-empty; a manually-triggered
	// execution leaves them zero-valued.
	AutomationID  string          `db:"automation_id" json:"automationId,omitempty"`
	TriggerSource string          `db:"trigger_source" json:"triggerSource,omitempty"`
	TriggerData   json.RawMessage `db:"trigger_data" json:"triggerData,omitempty"`
}

// Automation is a persistent trigger-to-workflow binding (§3 Automation).
type Automation struct {
	ID            string          `db:"id" json:"id"`
	PluginID      string          `db:"plugin_id" json:"pluginId"`
	TenantID      string          `db:"tenant_id" json:"tenantId,omitempty"`
	WorkflowID    string          `db:"workflow_id" json:"workflowId"`
	Enabled       bool            `db:"enabled" json:"enabled"`
	TriggerType   string          `db:"trigger_type" json:"triggerType"`
	TriggerConfig json.RawMessage `db:"trigger_config" json:"triggerConfig"`
	RunCount      int64           `db:"run_count" json:"runCount"`
	SuccessCount  int64           `db:"success_count" json:"successCount"`
	FailureCount  int64           `db:"failure_count" json:"failureCount"`
	LastRunAt     *time.Time      `db:"last_run_at" json:"lastRunAt,omitempty"`
	NextRunAt     *time.Time      `db:"next_run_at" json:"nextRunAt,omitempty"`
	LastError     string          `db:"last_error" json:"lastError,omitempty"`
}

// FromInterpreterResult builds the ExecutionRecord's outcome fields from
// a finished interpreter.Result, leaving the identity/trigger fields for
// the caller to set.
func FromInterpreterResult(r *interpreter.Result) (status Status, finalState, nodeLogs json.RawMessage, failedNodeID, errMsg string, err error) {
	finalState, err = json.Marshal(r.FinalState)
	if err != nil {
		return "", nil, nil, "", "", err
	}
	nodeLogs, err = json.Marshal(r.NodeLogs)
	if err != nil {
		return "", nil, nil, "", "", err
	}
	return Status(r.Status), finalState, nodeLogs, r.FailedNodeID, r.Error, nil
}
