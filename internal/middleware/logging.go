// Package middleware holds Gin middleware.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jagadeepmamidi/sahay-ai/pkg/log"
)

// RequestLogger logs one structured line per request. Bodies are not
// captured: the chat endpoints stream and the rest carry nothing useful.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		log.Infow("HTTP request",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
	}
}
