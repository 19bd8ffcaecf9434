package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/lumen-church/backend/internal/auth"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/response"
)

// RequirePermission returns a middleware that allows only requesters whose
// role or extra grants include perm. It must run after JWT.
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !claims.Can(perm) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// HasPermission reports whether the request carries a token granting perm.
func HasPermission(c *gin.Context, perm models.Permission) bool {
	claims, ok := auth.ClaimsFrom(c)
	return ok && claims.Can(perm)
}
