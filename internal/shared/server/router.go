package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docinsight-backend/internal/analyses"
	"docinsight-backend/internal/documents"
	"docinsight-backend/internal/shared/config"
	"docinsight-backend/internal/shared/metrics"
	"docinsight-backend/internal/shared/server/middleware"
	"docinsight-backend/internal/shared/server/respond"
)

const version = "1.0.0"

// Rate limit groups. Generation is the expensive path and gets the
// tightest budget (~20/hour/IP).
const (
	groupGenerate = "GENERATE"
	groupUpload   = "UPLOAD"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config           config.Config
	DocumentsHandler *documents.Handler
	AnalysesHandler  *analyses.Handler
	RateLimiter      *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				groupGenerate: {Rate: 20.0 / 3600.0, Burst: 20},
				groupUpload:   {Rate: 100.0 / 3600.0, Burst: 25},
			},
			GroupFor: rateLimitGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		respond.OK(c, gin.H{
			"status":    "ok",
			"version":   version,
			"env":       deps.Config.Env,
			"timestamp": time.Now().UTC(),
		})
	})

	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.AnalysesHandler != nil {
		deps.AnalysesHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != "POST" {
		return ""
	}
	path := c.Request.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/analyses/documents/"):
		return groupGenerate
	case path == "/api/documents/upload":
		return groupUpload
	}
	return ""
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
