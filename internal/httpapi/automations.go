package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loomwork/loom/internal/execstore"
	"github.com/loomwork/loom/internal/interperrors"
	"github.com/loomwork/loom/internal/schedule"
)

type automationHandlers struct {
	automations execstore.AutomationRepository
	scheduler   *schedule.Scheduler
	logger      *slog.Logger
}

// get scopes the lookup to the caller's tenant: GetAutomation itself
// takes no tenant (the scheduler's FireFunc also calls it, by
// automationID alone, from a trusted internal path with no tenant
// claim to check), so the tenant check happens here instead.
func (h *automationHandlers) get(c *gin.Context) {
	a, err := h.automations.GetAutomation(c.Request.Context(), c.Param("id"))
	if err != nil || a.TenantID != tenantID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "AUTOMATION_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, a)
}

// list returns the enabled cron automations; AutomationRepository has no
// general tenant-scoped listing method, only the cron-armed subset the
// scheduler itself needs at startup.
func (h *automationHandlers) list(c *gin.Context) {
	automations, err := h.automations.ListEnabledCron(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"automations": automations})
}

// createAutomationRequest mirrors execstore.Automation's caller-supplied
// fields; run counters and bookkeeping are server-owned.
type createAutomationRequest struct {
	PluginID      string          `json:"pluginId" binding:"required"`
	WorkflowID    string          `json:"workflowId" binding:"required"`
	Enabled       bool            `json:"enabled"`
	TriggerType   string          `json:"triggerType" binding:"required"`
	TriggerConfig json.RawMessage `json:"triggerConfig"`
}

// create persists a new Automation and, for a cron trigger, arms it with
// the scheduler immediately (§4.F ScheduleAutomation).
func (h *automationHandlers) create(c *gin.Context) {
	var req createAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a := &execstore.Automation{
		ID:            uuid.NewString(),
		PluginID:      req.PluginID,
		TenantID:      tenantID(c),
		WorkflowID:    req.WorkflowID,
		Enabled:       req.Enabled,
		TriggerType:   req.TriggerType,
		TriggerConfig: req.TriggerConfig,
	}
	if err := h.automations.Create(c.Request.Context(), a); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if a.Enabled && a.TriggerType == "cron" {
		var cfg struct {
			CronExpression string `json:"cronExpression"`
			Timezone       string `json:"timezone"`
		}
		if err := json.Unmarshal(a.TriggerConfig, &cfg); err == nil {
			if err := h.scheduler.ScheduleAutomation(a.ID, a.PluginID, cfg.CronExpression, cfg.Timezone); err != nil {
				h.logger.Warn("automations: failed to arm new cron automation", "automationId", a.ID, "error", err)
			}
		}
	}

	c.JSON(http.StatusCreated, a)
}

// validateCronRequest is the §6 cron validation surface body.
type validateCronRequest struct {
	CronExpression string `json:"cronExpression" binding:"required"`
	Timezone       string `json:"timezone"`
}

type validateCronResponse struct {
	Valid   bool   `json:"valid"`
	NextRun string `json:"nextRun,omitempty"`
	Error   string `json:"error,omitempty"`
}

// validateCron is a pure function with no side effects or I/O, per
// §4.F's validate contract.
func (h *automationHandlers) validateCron(c *gin.Context) {
	var req validateCronRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	next, err := schedule.Validate(req.CronExpression, req.Timezone)
	if err != nil {
		var ie *interperrors.Error
		msg := err.Error()
		if errors.As(err, &ie) {
			msg = ie.Message
		}
		c.JSON(http.StatusOK, validateCronResponse{Valid: false, Error: msg})
		return
	}
	c.JSON(http.StatusOK, validateCronResponse{Valid: true, NextRun: next.Format("2006-01-02T15:04:05Z07:00")})
}
