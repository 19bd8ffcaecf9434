package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-church/backend/internal/auth"
	"github.com/lumen-church/backend/internal/models"
)

func newRouter(jwtSvc *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/open", OptionalJWT(jwtSvc), func(c *gin.Context) {
		if id := auth.IdentityFrom(c); id != nil {
			c.String(http.StatusOK, id.Email)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	r.GET("/admin", JWT(jwtSvc), RequirePermission(models.PermEventsWrite), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func token(t *testing.T, svc *auth.JWTService, role models.Role) string {
	t.Helper()
	tok, err := svc.Generate(&models.User{ID: uuid.New(), Email: string(role) + "@example.com", Role: role})
	require.NoError(t, err)
	return tok
}

func TestPermissionGate(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(svc)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
		{"member", "Bearer " + token(t, svc, models.RoleMember), http.StatusForbidden},
		{"leader", "Bearer " + token(t, svc, models.RoleLeader), http.StatusOK},
		{"admin", "Bearer " + token(t, svc, models.RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, "anonymous", w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	assert.Equal(t, "anonymous", w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/open?token="+token(t, svc, models.RoleMember), nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, "member@example.com", w.Body.String())
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("https://igreja.example.org/, http://localhost:3000"))
	r.PATCH("/admin/events/1", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/admin/events/1", nil)
	req.Header.Set("Origin", "https://igreja.example.org")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://igreja.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "If-Match")
	assert.Equal(t, "ETag", w.Header().Get("Access-Control-Expose-Headers"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/admin/events/1", nil)
	req.Header.Set("Origin", "https://elsewhere.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
