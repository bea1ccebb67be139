package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogMiddleware logs API and swagger traffic with a level derived
// from the response status. Infra endpoints stay quiet.
func RequestLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if !(strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/swagger")) {
			return
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)),
			zap.String("client", c.ClientIP()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("http request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}

// RequireBearerMiddleware guards the API with a static bearer token. An
// empty token disables the check. Health probes and metrics stay open so
// orchestration keeps working against a locked-down instance.
func RequireBearerMiddleware(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			c.Next()
			return
		}
		if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/swagger") {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			got, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, apiResponse{
					Code:    http.StatusUnauthorized,
					Message: "missing bearer token",
				})
				return
			}
			if strings.TrimSpace(got) != token {
				c.AbortWithStatusJSON(http.StatusUnauthorized, apiResponse{
					Code:    http.StatusUnauthorized,
					Message: "invalid bearer token",
				})
				return
			}
		}
		c.Next()
	}
}
