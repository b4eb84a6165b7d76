package schedule

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/loomwork/loom/internal/events"
	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/execstore"
	"github.com/loomwork/loom/internal/interpreter"
	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/value"
	"github.com/loomwork/loom/internal/workflow"
)

// WorkflowLoader resolves an automation's bound workflow definition.
type WorkflowLoader interface {
	Load(ctx context.Context, tenantID, workflowID string) (*workflow.Definition, error)
}

// Runner adapts the interpreter into a FireFunc: it loads the
// automation's workflow, runs it, and persists the resulting execution
// and run counters, following the teacher's WorkflowServiceAdapter
// pattern of bridging a plugin callback into the execution pipeline.
type Runner struct {
	Automations execstore.AutomationRepository
	Executions  execstore.Repository
	Workflows   WorkflowLoader
	Registry    *node.Registry
	EventSink   events.Sink
	Services    execctx.Services
	Logger      *slog.Logger
}

// FireFunc returns the callback to register for pluginID "cron".
func (r *Runner) FireFunc() FireFunc {
	return func(automationID, executionID string, tickAt time.Time) {
		ctx := context.Background()
		automation, err := r.Automations.GetAutomation(ctx, automationID)
		if err != nil {
			r.Logger.Error("schedule: automation lookup failed", "automationId", automationID, "error", err)
			return
		}
		if !automation.Enabled {
			r.Logger.Warn("schedule: tick for disabled automation, skipping", "automationId", automationID)
			return
		}

		def, err := r.Workflows.Load(ctx, automation.TenantID, automation.WorkflowID)
		if err != nil {
			r.Logger.Error("schedule: workflow load failed", "automationId", automationID, "workflowId", automation.WorkflowID, "error", err)
			_ = r.Automations.RecordRun(ctx, automationID, false, tickAt, err.Error())
			return
		}

		triggerData, _ := json.Marshal(map[string]interface{}{"automationId": automationID, "tickAt": tickAt})
		rec := &execstore.ExecutionRecord{
			ID:            executionID,
			WorkflowID:    automation.WorkflowID,
			TenantID:      automation.TenantID,
			Status:        execstore.StatusRunning,
			TriggeredBy:   execstore.TriggeredAutomation,
			InitialState:  mustMarshal(def.InitialState),
			StartedAt:     tickAt,
			AutomationID:  automationID,
			TriggerSource: "cron",
			TriggerData:   triggerData,
		}
		if err := r.Executions.CreateExecution(ctx, rec); err != nil {
			r.Logger.Error("schedule: failed to create execution record", "automationId", automationID, "error", err)
			return
		}

		result := interpreter.Run(ctx, *def, interpreter.Options{
			Registry:      r.Registry,
			Logger:        r.Logger,
			TenantID:      automation.TenantID,
			CorrelationID: executionID,
			EventSink:     r.EventSink,
			Services:      r.Services,
		})

		status, finalState, nodeLogs, failedNodeID, errMsg, err := execstore.FromInterpreterResult(result)
		if err != nil {
			r.Logger.Error("schedule: failed to marshal interpreter result", "automationId", automationID, "error", err)
			return
		}
		if err := r.Executions.CompleteExecution(ctx, executionID, status, nil, finalState, nodeLogs, failedNodeID, errMsg); err != nil {
			r.Logger.Error("schedule: failed to complete execution record", "automationId", automationID, "error", err)
		}

		success := status == execstore.StatusCompleted
		if err := r.Automations.RecordRun(ctx, automationID, success, tickAt, errMsg); err != nil {
			r.Logger.Error("schedule: failed to record automation run", "automationId", automationID, "error", err)
		}
	}
}

func mustMarshal(v value.Object) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
