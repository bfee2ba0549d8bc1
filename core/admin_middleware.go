package core

import (
	"github.com/gin-gonic/gin"
)

// AdminOnly rejects requests whose principal is not an administrator:
// 401 when anonymous, 403 otherwise.
func AdminOnly(access *AccessEvaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := access.RequireAdmin(c.Request.Context()); err != nil {
			respondDomainError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
