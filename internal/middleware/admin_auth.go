package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"sensor-fleet-server/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware guards the administrative API with a static
// bearer token. This is a stand-in for the deployment's real trust
// boundary (reverse proxy, SSO, ...); device-facing endpoints never go
// through it.
func AdminAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			utils.ErrorResponse(c, http.StatusForbidden, "admin API is disabled")
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid admin token")
			c.Abort()
			return
		}

		c.Next()
	}
}
