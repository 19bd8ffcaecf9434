package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lumen-church/backend/internal/auth"
	"github.com/lumen-church/backend/pkg/response"
)

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		token, ok := bearer(c)
		if !ok {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		auth.SetClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT sets claims when a valid token is presented and lets
// anonymous requests through. Invalid tokens are treated as anonymous.
func OptionalJWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			token = c.Query("token")
		}
		if token != "" {
			if claims, err := jwtService.Validate(token); err == nil {
				auth.SetClaims(c, claims)
			}
		}
		c.Next()
	}
}
