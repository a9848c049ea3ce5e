package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/pricefinder/internal/logger"
	"github.com/rs/zerolog"
)

// RequestLogger is a Gin middleware that writes one structured entry per request.
//
// Fields: request_id, method, route (template or "unmatched"), path, query,
// status, latency_ms, bytes and client_ip. 4xx responses log at warn and 5xx
// at error; everything else at info.
//
// Usage:
//
//	router := gin.New()
//	router.Use(middleware.RequestID(), middleware.RequestLogger())
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rid, _ := c.Get(RequestIDKey)

		levelFor(status, logger.L()).
			Str("request_id", toString(rid)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP()).
			Msg("http_request")
	}
}

// toString returns v when it is a string and "" otherwise.
func toString(v any) string {
	s, _ := v.(string)
	return s
}

func levelFor(status int, l *zerolog.Logger) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return l.Error()
	case status >= http.StatusBadRequest:
		return l.Warn()
	default:
		return l.Info()
	}
}
