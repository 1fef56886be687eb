package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// maxDisplayName bounds the display name a client may claim.
const maxDisplayName = 64

// RequireIdentity resolves the caller's display name from the X-Principal
// header, falling back to the `principal` query parameter for websocket
// clients that cannot set headers. Authentication itself happens upstream;
// this service trusts the identity it is handed.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimSpace(c.GetHeader("X-Principal"))
		if name == "" {
			name = strings.TrimSpace(c.Query("principal"))
		}
		if name == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing principal identity"})
			return
		}
		if len(name) > maxDisplayName {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "principal name too long"})
			return
		}
		c.Set(principalKey, name)
		c.Next()
	}
}

// Principal returns the display name set by RequireIdentity.
func Principal(c *gin.Context) string {
	return c.GetString(principalKey)
}
