package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loomwork/loom/internal/events"
	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/execstore"
	"github.com/loomwork/loom/internal/interpreter"
	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/value"
	"github.com/loomwork/loom/internal/workflow"
)

// WorkflowLoader resolves a workflow definition by id, mirroring the
// scheduler runner's own loader contract.
type WorkflowLoader interface {
	Load(ctx context.Context, tenantID, workflowID string) (*workflow.Definition, error)
}

// Dispatcher maps inbound webhook paths to automations and runs their
// workflow synchronously (§4.G). It is intentionally public: no
// authentication is performed here — callers wanting auth put a gin
// middleware in front of the registered route.
type Dispatcher struct {
	Automations execstore.AutomationRepository
	Executions  execstore.Repository
	Workflows   WorkflowLoader
	Registry    *node.Registry
	EventSink   events.Sink
	Services    execctx.Services
	Logger      *slog.Logger
}

// Handler returns a gin handler that dispatches an inbound webhook POST
// to the automation bound to the request's path param.
func (d *Dispatcher) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// gin's catch-all param keeps the leading "/"; webhook paths are
		// stored and reported without it.
		path := strings.TrimPrefix(c.Param("path"), "/")

		automation, err := d.Automations.GetByWebhookPath(c.Request.Context(), path)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no automation bound to this webhook path"})
			return
		}
		if !automation.Enabled {
			c.JSON(http.StatusConflict, gin.H{"error": "automation is disabled"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		var fromBody value.Object
		if len(body) > 0 {
			if err := json.Unmarshal(body, &fromBody); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
				return
			}
		}

		def, err := d.Workflows.Load(c.Request.Context(), automation.TenantID, automation.WorkflowID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "workflow lookup failed"})
			return
		}
		value.MergeShallow(def.InitialState, fromBody)

		executionID := uuid.NewString()
		now := time.Now()

		rec := &execstore.ExecutionRecord{
			ID:            executionID,
			WorkflowID:    automation.WorkflowID,
			TenantID:      automation.TenantID,
			Status:        execstore.StatusRunning,
			TriggeredBy:   execstore.TriggeredWebhook,
			InitialState:  body,
			StartedAt:     now,
			AutomationID:  automation.ID,
			TriggerSource: "http:" + path,
			TriggerData:   body,
		}
		if err := d.Executions.CreateExecution(c.Request.Context(), rec); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create execution record"})
			return
		}

		result := interpreter.Run(c.Request.Context(), *def, interpreter.Options{
			Registry:      d.Registry,
			Logger:        d.Logger,
			TenantID:      automation.TenantID,
			CorrelationID: executionID,
			EventSink:     d.EventSink,
			Services:      d.Services,
		})

		status, finalState, nodeLogs, failedNodeID, errMsg, err := execstore.FromInterpreterResult(result)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to marshal execution result"})
			return
		}
		if err := d.Executions.CompleteExecution(c.Request.Context(), executionID, status, nil, finalState, nodeLogs, failedNodeID, errMsg); err != nil {
			d.Logger.Error("webhook: failed to complete execution record", "executionId", executionID, "error", err)
		}
		_ = d.Automations.RecordRun(c.Request.Context(), automation.ID, status == execstore.StatusCompleted, time.Now(), errMsg)

		c.JSON(http.StatusOK, gin.H{"executionId": executionID, "automationId": automation.ID})
	}
}

// RegisterRoutes mounts the dispatcher under /automations/webhook/*path.
func RegisterRoutes(r gin.IRouter, d *Dispatcher) {
	r.POST("/automations/webhook/*path", d.Handler())
}
