package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/lumen-church/backend/internal/models"
)

// ContextClaims is the gin context key holding the validated *Claims.
const ContextClaims = "auth_claims"

// SetClaims stores validated claims on the request context.
func SetClaims(c *gin.Context, claims *Claims) {
	c.Set(ContextClaims, claims)
}

// ClaimsFrom returns the request's claims, if a valid token was presented.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// IdentityFrom returns the requester's identity or nil for anonymous requests.
func IdentityFrom(c *gin.Context) *models.Identity {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return nil
	}
	return claims.Identity()
}
