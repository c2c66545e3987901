package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PrincipalKey holds the authenticated name in the gin context.
const PrincipalKey = "auth_principal"

// GinAuth rejects unauthenticated requests with 401 when the service is enabled.
func (s *Service) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Enabled() {
			c.Next()
			return
		}
		who, err := s.Authenticate(c.Request)
		if err != nil {
			c.Header("WWW-Authenticate", `Basic realm="frpdeck"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required: " + err.Error()})
			return
		}
		c.Set(PrincipalKey, who)
		c.Next()
	}
}
