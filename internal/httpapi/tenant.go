package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/loomwork/loom/internal/pkg/tenantctx"
)

// TenantHeader is the header external callers set to identify their
// tenant. The real auth layer this stub stands in front of is expected
// to set this from a verified principal, not trust it directly from the
// wire in production.
const TenantHeader = "X-Tenant-ID"

// TenantMiddleware threads the request's tenant id into both the gin
// context (for handlers reading c.GetString) and a standard
// context.Context (for anything downstream expecting tenantctx).
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(TenantHeader)
		c.Set("tenantID", tenantID)
		ctx := tenantctx.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString("tenantID")
}
