package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/changelog/internal/middleware"
)

// quietPaths are logged at debug so probes do not flood the log.
var quietPaths = map[string]bool{
	"/api/v1/health": true,
	"/api/v1/ready":  true,
}

// requestLogger logs one entry per request at a level chosen by status:
// 5xx at error, 4xx at warn, the rest at info.
func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"route":      c.FullPath(),
			"status":     status,
			"duration":   time.Since(start).String(),
			"client":     c.ClientIP(),
			"request_id": c.GetString(middleware.RequestIDKey),
		})
		if p := c.GetString(middleware.PrincipalKey); p != "" {
			entry = entry.WithField("principal", p)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		case quietPaths[c.Request.URL.Path]:
			entry.Debug("request")
		default:
			entry.Info("request")
		}
	}
}
