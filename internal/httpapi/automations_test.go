package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomwork/loom/internal/execstore"
	"github.com/loomwork/loom/internal/schedule"
)

func TestAutomationHandlers_CreateArmsCronImmediately(t *testing.T) {
	gin.SetMode(gin.TestMode)
	automations := execstore.NewMemoryRepository()
	scheduler := schedule.NewScheduler(slog.Default())
	scheduler.RegisterPlugin("cron", func(automationID, executionID string, tickAt time.Time) {})

	h := &automationHandlers{automations: automations, scheduler: scheduler, logger: slog.Default()}
	router := gin.New()
	router.Use(withTenant("tenant-a"))
	router.POST("/automations", h.create)

	body, _ := json.Marshal(map[string]interface{}{
		"pluginId":      "cron",
		"workflowId":    "wf-1",
		"enabled":       true,
		"triggerType":   "cron",
		"triggerConfig": json.RawMessage(`{"cronExpression":"*/5 * * * *","timezone":"UTC"}`),
	})
	req := httptest.NewRequest(http.MethodPost, "/automations", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var created execstore.Automation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "tenant-a", created.TenantID)
	assert.Equal(t, 1, scheduler.ActiveJobCount())
}

func TestAutomationHandlers_GetMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &automationHandlers{automations: execstore.NewMemoryRepository(), logger: slog.Default()}
	router := gin.New()
	router.GET("/automations/:id", h.get)

	req := httptest.NewRequest(http.MethodGet, "/automations/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "AUTOMATION_NOT_FOUND", body["error"])
}

func TestAutomationHandlers_GetIsTenantScoped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	automations := execstore.NewMemoryRepository()
	require.NoError(t, automations.Create(context.Background(), &execstore.Automation{
		ID: "a1", TenantID: "tenant-a", WorkflowID: "wf-1", TriggerType: "cron",
	}))

	h := &automationHandlers{automations: automations, logger: slog.Default()}
	router := gin.New()
	router.Use(withTenant("tenant-b"))
	router.GET("/automations/:id", h.get)

	req := httptest.NewRequest(http.MethodGet, "/automations/a1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAutomationHandlers_ValidateCron(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &automationHandlers{automations: execstore.NewMemoryRepository(), logger: slog.Default()}
	router := gin.New()
	router.POST("/automations/cron/validate", h.validateCron)

	body, _ := json.Marshal(map[string]string{"cronExpression": "*/5 * * * *", "timezone": "UTC"})
	req := httptest.NewRequest(http.MethodPost, "/automations/cron/validate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp validateCronResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.NotEmpty(t, resp.NextRun)
}

func TestAutomationHandlers_ValidateCronInvalidExpression(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &automationHandlers{automations: execstore.NewMemoryRepository(), logger: slog.Default()}
	router := gin.New()
	router.POST("/automations/cron/validate", h.validateCron)

	body, _ := json.Marshal(map[string]string{"cronExpression": "not a cron"})
	req := httptest.NewRequest(http.MethodPost, "/automations/cron/validate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp validateCronResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.NotEmpty(t, resp.Error)
}
