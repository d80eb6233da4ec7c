package middleware

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var errPanic = errors.New("panic recovered")

// RequestLogger logs one line per request with status and latency
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("clientIP", c.ClientIP()).
			Msg("Request handled")
	}
}

// Recovery turns panics into a 500 response and logs the panic value
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("Recovered from panic")
		HandleAPIError(c, errPanic)
	})
}
