package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loomwork/loom/internal/template"
)

// templateHandlers exposes the reusable-workflow-template surface
// (save a workflow as a shareable template, browse the library,
// instantiate one back into a runnable definition).
type templateHandlers struct {
	service *template.Service
}

func (h *templateHandlers) list(c *gin.Context) {
	filter := template.TemplateFilter{
		Category:    c.Query("category"),
		SearchQuery: c.Query("search"),
	}
	templates, err := h.service.ListTemplates(c.Request.Context(), tenantID(c), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *templateHandlers) get(c *gin.Context) {
	tmpl, err := h.service.GetTemplate(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.respondNotFound(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (h *templateHandlers) create(c *gin.Context) {
	var input template.CreateTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tmpl, err := h.service.CreateTemplate(c.Request.Context(), tenantID(c), userID(c), input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (h *templateHandlers) createFromWorkflow(c *gin.Context) {
	var input template.CreateTemplateFromWorkflowInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tmpl, err := h.service.CreateFromWorkflow(c.Request.Context(), tenantID(c), userID(c), input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (h *templateHandlers) update(c *gin.Context) {
	var input template.UpdateTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.UpdateTemplate(c.Request.Context(), tenantID(c), c.Param("id"), input); err != nil {
		h.respondNotFound(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *templateHandlers) delete(c *gin.Context) {
	if err := h.service.DeleteTemplate(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		h.respondNotFound(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *templateHandlers) instantiate(c *gin.Context) {
	var input template.InstantiateTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.InstantiateTemplate(c.Request.Context(), tenantID(c), c.Param("id"), input)
	if err != nil {
		h.respondNotFound(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// respondNotFound maps the repository's plain "template not found"
// errors to a 404; template.Repository has no typed not-found sentinel
// (it returns a bare fmt.Errorf), so this matches on message like the
// service layer itself does internally.
func (h *templateHandlers) respondNotFound(c *gin.Context, err error) {
	if strings.Contains(err.Error(), "not found") {
		c.JSON(http.StatusNotFound, gin.H{"error": "TEMPLATE_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// userID reads the caller identity the auth layer is expected to set;
// NoAuth leaves it empty.
func userID(c *gin.Context) string {
	return c.GetString("userID")
}
