package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-zip-analyzer/internal/analysis"
	"resume-zip-analyzer/internal/report"
	"resume-zip-analyzer/internal/shared/config"
	"resume-zip-analyzer/internal/shared/metrics"
	"resume-zip-analyzer/internal/shared/server/middleware"
)

const healthPath = "/api/v1/health"

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analysis.Handler
	// RateLimiter may be shared across routers in tests; nil builds a fresh one.
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.SetHTMLTemplate(report.Templates())

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET(healthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":       true,
			"provider": deps.Config.LLMProvider,
			"model":    deps.Config.LLMModel,
		})
	})
	r.GET("/metrics", metrics.Handler())

	limit := middleware.RateLimit(middleware.RateLimitConfig{
		Limiter: deps.RateLimiter,
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost {
				return "ANALYZE"
			}
			return "PAGES"
		},
		Rules: map[string]middleware.RateLimitRule{
			"ANALYZE": middleware.PerMinute(deps.Config.RateLimitPerMinute),
		},
	})

	if deps.AnalysisHandler != nil {
		api := r.Group("/api/v1")
		api.Use(middleware.Auth(deps.Config.AccessToken), limit)
		deps.AnalysisHandler.RegisterRoutes(api)

		// The browser form cannot carry a bearer token, so the HTML pages
		// are only served when the shared token is disabled.
		if deps.Config.AccessToken == "" {
			pages := r.Group("")
			pages.Use(limit)
			deps.AnalysisHandler.RegisterPages(pages)
		}
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
