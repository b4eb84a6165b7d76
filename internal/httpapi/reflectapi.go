package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/reflect"
	"github.com/loomwork/loom/internal/workflow"
)

// reflectHandlers exposes the non-executing analysis component (§4.H):
// node catalog, composability graph, workflow explanation, deep
// validation, and the pattern library. Nothing behind these routes ever
// invokes a node's Execute.
type reflectHandlers struct {
	registry *node.Registry
}

func (h *reflectHandlers) catalog(c *gin.Context) {
	filter := reflect.CatalogFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	c.JSON(http.StatusOK, gin.H{"nodes": reflect.Catalog(h.registry, filter)})
}

func (h *reflectHandlers) explain(c *gin.Context) {
	var def workflow.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reflect.Explain(h.registry, def))
}

func (h *reflectHandlers) validate(c *gin.Context) {
	var def workflow.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reflect.Validate(h.registry, def))
}

func (h *reflectHandlers) detectPatterns(c *gin.Context) {
	var def workflow.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": reflect.Detect(def)})
}

type generatePatternRequest struct {
	Pattern      string                 `json:"pattern" binding:"required"`
	Placeholders map[string]interface{} `json:"placeholders"`
}

func (h *reflectHandlers) generatePattern(c *gin.Context) {
	var req generatePatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	def, err := reflect.Generate(req.Pattern, req.Placeholders)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, def)
}

func (h *reflectHandlers) successors(c *gin.Context) {
	g := reflect.NewGraph(h.registry)
	c.JSON(http.StatusOK, gin.H{"suggestions": g.Successors(c.Param("nodeId"))})
}

func (h *reflectHandlers) predecessors(c *gin.Context) {
	g := reflect.NewGraph(h.registry)
	c.JSON(http.StatusOK, gin.H{"suggestions": g.Predecessors(c.Param("nodeId"))})
}
