package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// OriginFilter creates middleware that filters requests based on allowed origins.
// A "*" entry allows any origin.
func OriginFilter(allowedOrigins []string) gin.HandlerFunc {
	allowAny := slices.Contains(allowedOrigins, "*")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		// If no origin header (direct WebSocket connection), check Sec-WebSocket-Origin
		if origin == "" {
			origin = c.GetHeader("Sec-WebSocket-Origin")
		}

		allowed := origin != "" && (allowAny || slices.Contains(allowedOrigins, origin))

		if !allowed && origin != "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Origin not allowed",
			})
			return
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger logs one line per request once the handler returns.
// WebSocket upgrades are logged when the connection is handed off.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("component", "http").Logger()

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		} else if status >= http.StatusBadRequest {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("uri", c.Request.RequestURI).
			Str("ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Incoming HTTP request")
	}
}
