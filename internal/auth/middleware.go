package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"exercisehub/internal/metrics"
)

const (
	CtxAdminKey = "auth_admin"
	CookieName  = "admin_session"
)

// TokenFrom reads the bearer token, falling back to the session cookie.
func TokenFrom(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h != "" && strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if v, err := c.Cookie(CookieName); err == nil {
		return v
	}
	return ""
}

func AdminMiddleware(guard Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := guard.Authorize(TokenFrom(c))
		switch {
		case err == nil:
			metrics.AdminAuth.WithLabelValues("ok").Inc()
		case errors.Is(err, ErrServiceUnavailable):
			metrics.AdminAuth.WithLabelValues("unavailable").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin not configured"})
			c.Abort()
			return
		default:
			metrics.AdminAuth.WithLabelValues("unauthorized").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(CtxAdminKey, true)
		c.Next()
	}
}

func IsAdmin(c *gin.Context) bool {
	return c.GetBool(CtxAdminKey)
}
