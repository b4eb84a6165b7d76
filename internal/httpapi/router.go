// Package httpapi is the composition root's gin route tree: it wires the
// workflow repository, execution repository, node registry, scheduler
// and webhook dispatcher behind HTTP handlers. Authentication/RBAC is an
// external collaborator (§1); NoAuth and TenantMiddleware are the stable
// slots a deployment replaces them in.
package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loomwork/loom/internal/events"
	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/execstore"
	"github.com/loomwork/loom/internal/metrics"
	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/schedule"
	"github.com/loomwork/loom/internal/template"
	"github.com/loomwork/loom/internal/webhook"
	"github.com/loomwork/loom/internal/websocket"
	"github.com/loomwork/loom/internal/workflow"
)

// Deps bundles every collaborator the route tree dispatches into. All
// fields are required except Templates and PromReg: a nil Templates
// leaves the /templates routes unmounted, and a nil PromReg leaves
// /metrics unmounted.
type Deps struct {
	Registry    *node.Registry
	Workflows   workflow.Repository
	Executions  execstore.Repository
	Automations execstore.AutomationRepository
	Scheduler   *schedule.Scheduler
	Dispatcher  *webhook.Dispatcher
	Hub         *websocket.Hub
	EventSink   events.Sink
	Services    execctx.Services
	Metrics     *metrics.Metrics
	PromReg     *prometheus.Registry
	Templates   *template.Service
	Logger      *slog.Logger
}

// NewRouter builds the full gin.Engine. The route tree is organized as
// the spec's components are: workflows/executions/automations form the
// stateful CRUD+trigger surface, /reflect exposes the non-executing
// analysis component (§4.H), and /ws serves live events; all of these sit
// under /api/v1 behind the auth and tenant middleware. /automations/webhook
// (§4.G) is the one public inbound surface, mounted outside that group.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", healthHandler)
	r.GET("/ready", readyHandler(d))

	if d.PromReg != nil {
		r.GET("/metrics", metricsHandler(d.PromReg))
	}

	webhook.RegisterRoutes(r, d.Dispatcher)

	api := r.Group("/api/v1")
	api.Use(httpAPIAuth(), TenantMiddleware())
	{
		wf := &workflowHandlers{repo: d.Workflows, registry: d.Registry, executions: d.Executions, eventSink: d.EventSink, services: d.Services, logger: d.Logger}
		api.GET("/workflows", wf.list)
		api.POST("/workflows", wf.create)
		api.GET("/workflows/:id", wf.get)
		api.PUT("/workflows/:id", wf.update)
		api.POST("/workflows/:id/run", wf.run)

		ex := &executionHandlers{repo: d.Executions}
		api.GET("/executions", ex.list)
		api.GET("/executions/:id", ex.get)
		api.GET("/executions/:id/timeline", ex.timeline)
		api.GET("/executions/:id/diff", ex.diff)
		api.GET("/executions/stats", ex.stats)

		au := &automationHandlers{automations: d.Automations, scheduler: d.Scheduler, logger: d.Logger}
		api.GET("/automations", au.list)
		api.POST("/automations", au.create)
		api.GET("/automations/:id", au.get)
		api.POST("/automations/cron/validate", au.validateCron)

		rf := &reflectHandlers{registry: d.Registry}
		api.GET("/reflect/catalog", rf.catalog)
		api.POST("/reflect/explain", rf.explain)
		api.POST("/reflect/validate", rf.validate)
		api.POST("/reflect/patterns/detect", rf.detectPatterns)
		api.POST("/reflect/patterns/generate", rf.generatePattern)
		api.GET("/reflect/graph/:nodeId/successors", rf.successors)
		api.GET("/reflect/graph/:nodeId/predecessors", rf.predecessors)

		ws := NewWebSocketHandler(d.Hub, d.Logger)
		api.GET("/ws", ws.HandleConnection)

		if d.Templates != nil {
			tm := &templateHandlers{service: d.Templates}
			api.GET("/templates", tm.list)
			api.POST("/templates", tm.create)
			api.POST("/templates/from-workflow", tm.createFromWorkflow)
			api.GET("/templates/:id", tm.get)
			api.PUT("/templates/:id", tm.update)
			api.DELETE("/templates/:id", tm.delete)
			api.POST("/templates/:id/instantiate", tm.instantiate)
		}
	}

	return r
}

// httpAPIAuth is the authenticated-route slot; NoAuth is the development
// stand-in a real deployment replaces with its RBAC middleware (§1).
func httpAPIAuth() gin.HandlerFunc {
	return NoAuth()
}
