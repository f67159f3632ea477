package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestLogger writes one structured entry per request.
func RequestLogger(logger log.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := log.Fields{
			"method":   c.Request.Method,
			"route":    route,
			"status":   c.Writer.Status(),
			"total_ms": float64(time.Since(start)) / float64(time.Millisecond),
		}
		if userID, ok := GetUserID(c); ok {
			fields["user_id"] = userID
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("http.request")
		case status >= 400:
			entry.Warn("http.request")
		default:
			entry.Info("http.request")
		}
	}
}
