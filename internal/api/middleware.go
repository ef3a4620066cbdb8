package api

import (
	"github.com/gin-gonic/gin"
)

// securityHeaders adds the standard hardening headers. The engine
// serves clinical risk data to a browser frontend, so MIME sniffing
// and framing are disallowed outright.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
