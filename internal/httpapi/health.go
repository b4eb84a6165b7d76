package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler exposes reg in the Prometheus text exposition format via
// gin.WrapH, following the teacher's convention of wrapping a stdlib
// http.Handler instead of hand-rolling a gin-native one (see the
// internal/metrics middleware.go note in DESIGN.md).
func metricsHandler(reg *prometheus.Registry) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// readyHandler reports ready once Registry, Workflows and Executions are
// all non-nil, and 503 "not ready" otherwise. The other Deps fields
// (Dispatcher, Scheduler, ...) are not checked.
func readyHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Registry == nil || d.Workflows == nil || d.Executions == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
