package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-zip-analyzer/internal/shared/telemetry"
)

// Context keys handlers may set so the access log carries run details.
const (
	RunIDKey       = "runId"
	ArchiveNameKey = "archiveName"
	FileCountKey   = "fileCount"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		runID, _ := c.Get(RunIDKey)
		archiveName, _ := c.Get(ArchiveNameKey)
		fileCount, _ := c.Get(FileCountKey)

		telemetry.Info("request.complete", map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"run_id":      runID,
			"archive":     archiveName,
			"file_count":  fileCount,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})
	}
}
