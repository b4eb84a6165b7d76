package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomwork/loom/internal/execstore"
)

func seedExecution(t *testing.T, repo *execstore.MemoryRepository, id, tenantID, status string) {
	t.Helper()
	rec := &execstore.ExecutionRecord{
		ID:         id,
		TenantID:   tenantID,
		WorkflowID: "wf-1",
		Status:     execstore.Status(status),
		StartedAt:  time.Now(),
	}
	require.NoError(t, repo.CreateExecution(context.Background(), rec))
}

func TestExecutionHandlers_ListFiltersByTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := execstore.NewMemoryRepository()
	seedExecution(t, repo, "e1", "tenant-a", "completed")
	seedExecution(t, repo, "e2", "tenant-b", "completed")

	h := &executionHandlers{repo: repo}
	router := gin.New()
	router.Use(withTenant("tenant-a"))
	router.GET("/executions", h.list)

	req := httptest.NewRequest(http.MethodGet, "/executions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Executions []*execstore.ExecutionRecord `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Executions, 1)
	assert.Equal(t, "e1", resp.Executions[0].ID)
}

func TestExecutionHandlers_GetMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := execstore.NewMemoryRepository()
	h := &executionHandlers{repo: repo}
	router := gin.New()
	router.GET("/executions/:id", h.get)

	req := httptest.NewRequest(http.MethodGet, "/executions/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecutionHandlers_GetIsTenantScoped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := execstore.NewMemoryRepository()
	seedExecution(t, repo, "e1", "tenant-a", "completed")

	h := &executionHandlers{repo: repo}
	router := gin.New()
	router.Use(withTenant("tenant-b"))
	router.GET("/executions/:id", h.get)

	req := httptest.NewRequest(http.MethodGet, "/executions/e1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecutionHandlers_Stats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := execstore.NewMemoryRepository()
	seedExecution(t, repo, "e1", "tenant-a", "completed")
	seedExecution(t, repo, "e2", "tenant-a", "failed")

	h := &executionHandlers{repo: repo}
	router := gin.New()
	router.Use(withTenant("tenant-a"))
	router.GET("/executions/stats", h.stats)

	req := httptest.NewRequest(http.MethodGet, "/executions/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
