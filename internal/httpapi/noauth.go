package httpapi

import "github.com/gin-gonic/gin"

// NoAuth is a pass-through middleware standing in for the real
// authentication/RBAC layer, which is an external collaborator per the
// Non-goals of §1 (HTTP routing/auth/RBAC is out of scope). It exists so
// the route tree has a stable middleware slot a deployment can replace
// without touching handler code.
func NoAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
	}
}
