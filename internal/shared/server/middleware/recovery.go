package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"resume-zip-analyzer/internal/shared/server/respond"
	"resume-zip-analyzer/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. The run and archive
// keys set by the analysis handler are logged when present.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"run_id":     c.GetString(RunIDKey),
				"archive":    c.GetString(ArchiveNameKey),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "unexpected server error", nil)
		}()
		c.Next()
	}
}
