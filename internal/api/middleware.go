package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	statusWarnThreshold  = 400
	statusErrorThreshold = 500

	requestIDHeader = "X-Request-ID"
)

// ZerologLogger is a Gin middleware that tags each request with an id and
// logs it using zerolog once it completes.
func ZerologLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		evt := log.Info()
		switch {
		case status >= statusErrorThreshold:
			evt = log.Error()
		case status >= statusWarnThreshold:
			evt = log.Warn()
		}

		if sessionID := sessionIDFromContext(c); sessionID != "" {
			evt = evt.Str("session_id", sessionID)
		}
		evt.
			Str("request_id", requestID).
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", path).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Str("user_agent", c.Request.UserAgent()).
			Msg("http request completed")
	}
}

// sessionIDFromContext finds the session a request worked on: the route
// parameter for API calls, the cookie for UI pages.
func sessionIDFromContext(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	if id, ok := c.Get(sessionContextKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
