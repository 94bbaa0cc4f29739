package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront/internal/config"
)

// SecurityHeaders adds security headers to every API response
func SecurityHeaders(cfg *config.Config) gin.HandlerFunc {
	headers := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
		"Server":                  cfg.App.Name,
	}
	if cfg.IsProduction() {
		headers["Strict-Transport-Security"] = "max-age=31536000; includeSubDomains"
	}

	return func(c *gin.Context) {
		for name, value := range headers {
			c.Header(name, value)
		}
		c.Next()
	}
}
