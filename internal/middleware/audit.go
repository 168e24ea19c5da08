package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/models"
)

// AuditOrigin stores the caller's address and user agent on the request
// context so audit records written by services can carry them.
func AuditOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := models.RequestOrigin{IPAddress: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
		c.Request = c.Request.WithContext(models.ContextWithOrigin(c.Request.Context(), origin))
		c.Next()
	}
}
