package proxy

import (
	"time"

	"github.com/gin-gonic/gin"
)

// getTimeoutMiddleware stores the upstream deadline for the request. The
// x-request-timeout header may shorten the configured timeout but never
// extend it; values that do not parse as a duration are ignored.
func getTimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		parsedTimeout := timeout

		timeoutHeader := c.GetHeader("x-request-timeout")
		if len(timeoutHeader) != 0 {
			parsed, err := time.ParseDuration(timeoutHeader)
			if err == nil && parsed > 0 && parsed < timeout {
				parsedTimeout = parsed
			}
		}

		c.Set("requestTimeout", parsedTimeout)
	}
}
