package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
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

type workflowHandlers struct {
	repo       workflow.Repository
	registry   *node.Registry
	executions execstore.Repository
	eventSink  events.Sink
	services   execctx.Services
	logger     *slog.Logger
}

func (h *workflowHandlers) list(c *gin.Context) {
	defs, err := h.repo.List(c.Request.Context(), tenantID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": defs})
}

func (h *workflowHandlers) get(c *gin.Context) {
	def, err := h.repo.Get(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.respondNotFound(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (h *workflowHandlers) create(c *gin.Context) {
	var def workflow.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if err := h.repo.Put(c.Request.Context(), tenantID(c), &def, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, def)
}

func (h *workflowHandlers) update(c *gin.Context) {
	var def workflow.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	def.ID = c.Param("id")
	expected := c.Query("expectedVersion")
	if err := h.repo.Put(c.Request.Context(), tenantID(c), &def, expected); err != nil {
		if errors.Is(err, workflow.ErrVersionConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "VERSION_CONFLICT"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, def)
}

// runRequest is the manual-trigger body: an optional state override
// merged over the stored definition's initialState (§4.D step 1, §6
// triggeredBy=manual/api).
type runRequest struct {
	InitialState value.Object `json:"initialState"`
}

// run invokes the interpreter synchronously for a manual/API trigger and
// persists the resulting execution record (§4.D, §4.E).
func (h *workflowHandlers) run(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	tid := tenantID(c)
	def, err := h.repo.Get(c.Request.Context(), tid, c.Param("id"))
	if err != nil {
		h.respondNotFound(c, err)
		return
	}

	executionID := uuid.NewString()
	now := time.Now()

	triggeredBy := execstore.TriggeredManual
	if c.GetHeader("Authorization") != "" {
		triggeredBy = execstore.TriggeredAPI
	}

	initial := mergeInitialState(def.InitialState, req.InitialState)
	initialJSON := mustMarshalObject(initial)

	rec := &execstore.ExecutionRecord{
		ID:           executionID,
		WorkflowID:   def.ID,
		TenantID:     tid,
		Status:       execstore.StatusRunning,
		TriggeredBy:  triggeredBy,
		InitialState: initialJSON,
		StartedAt:    now,
	}
	if err := h.executions.CreateExecution(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := interpreter.Run(c.Request.Context(), *def, interpreter.Options{
		Registry:             h.registry,
		Logger:               h.logger,
		TenantID:             tid,
		CorrelationID:        executionID,
		InitialStateOverride: req.InitialState,
		JWTToken:             c.GetHeader("Authorization"),
		EventSink:            h.eventSink,
		Services:             h.services,
	})

	status, finalState, nodeLogs, failedNodeID, errMsg, err := execstore.FromInterpreterResult(result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.executions.CompleteExecution(c.Request.Context(), executionID, status, nil, finalState, nodeLogs, failedNodeID, errMsg); err != nil {
		h.logger.Error("workflow run: failed to complete execution record", "executionId", executionID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"executionId": executionID,
		"status":      status,
		"finalState":  result.FinalState,
		"error":       errMsg,
	})
}

func (h *workflowHandlers) respondNotFound(c *gin.Context, err error) {
	if errors.Is(err, workflow.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "WORKFLOW_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func mergeInitialState(base, override value.Object) value.Object {
	out := make(value.Object, len(base))
	for k, v := range base {
		out[k] = v
	}
	value.MergeShallow(out, override)
	return out
}

func mustMarshalObject(v value.Object) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
