package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loomwork/loom/internal/execstore"
)

type executionHandlers struct {
	repo execstore.Repository
}

// list implements the §6 execution listing surface: filter by status,
// workflowId, and a date window; pageSize clamped to [1,100] default 50;
// sortBy/sortOrder per ListFilter.Normalize.
func (h *executionHandlers) list(c *gin.Context) {
	filter := execstore.ListFilter{
		Status:     execstore.Status(c.Query("status")),
		WorkflowID: c.Query("workflowId"),
		TenantID:   tenantID(c),
		PageSize:   atoiOr(c.Query("pageSize"), 0),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	}
	if v := c.Query("startDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartDate = t
		}
	}
	if v := c.Query("endDate"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndDate = t
		}
	}
	filter = filter.Normalize()

	recs, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": recs})
}

func (h *executionHandlers) get(c *gin.Context) {
	rec, err := h.repo.Get(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.respondNotFound(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// timeline reconstructs the §4.E derived timeline view purely from the
// stored row's node logs.
func (h *executionHandlers) timeline(c *gin.Context) {
	rec, err := h.repo.Get(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.respondNotFound(c, err)
		return
	}
	entries, err := execstore.Timeline(rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": entries})
}

// diff returns the per-node-log-entry JSON-patch-style state diff (§4.E).
func (h *executionHandlers) diff(c *gin.Context) {
	rec, err := h.repo.Get(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.respondNotFound(c, err)
		return
	}
	logs, err := execstore.DecodeNodeLogs(rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	type entryDiff struct {
		NodeID string                `json:"nodeId"`
		Ops    []execstore.PatchOp   `json:"ops"`
	}
	out := make([]entryDiff, 0, len(logs))
	for _, e := range logs {
		out = append(out, entryDiff{NodeID: e.NodeID, Ops: execstore.StateDiff(e.StateBefore, e.StateAfter)})
	}
	c.JSON(http.StatusOK, gin.H{"diff": out})
}

// stats aggregates a filtered execution set into the §4.E stats view.
func (h *executionHandlers) stats(c *gin.Context) {
	filter := execstore.ListFilter{
		Status:     execstore.Status(c.Query("status")),
		WorkflowID: c.Query("workflowId"),
		TenantID:   tenantID(c),
		PageSize:   100,
	}.Normalize()

	recs, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, execstore.ComputeStats(recs))
}

func (h *executionHandlers) respondNotFound(c *gin.Context, err error) {
	if errors.Is(err, execstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
