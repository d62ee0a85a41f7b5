package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/funnelforge-backend/internal/handlers"
	"github.com/yungbote/funnelforge-backend/internal/middleware"
	"github.com/yungbote/funnelforge-backend/internal/observability"
)

type RouterConfig struct {
	Mode           string
	AllowedOrigins string

	Healthcheck *handlers.HealthcheckHandler
	Funnels     *handlers.FunnelHandler
	Regenerate  *handlers.RegenerateHandler
	Jobs        *handlers.JobHandler
	Events      *handlers.SSEHandler
	Auth        *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	// No-op until a tracer provider is installed at startup.
	r.Use(otelgin.Middleware(observability.ServiceName))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     splitOrigins(cfg.AllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", cfg.Healthcheck.Handle)

	api := r.Group("/api")
	api.Use(cfg.Auth.RequireAuth())
	{
		api.GET("/regenerate/info", cfg.Regenerate.Info)

		api.POST("/funnels", cfg.Funnels.Create)
		api.GET("/funnels/:id", cfg.Funnels.Get)
		api.PUT("/funnels/:id/answers", cfg.Funnels.UpdateAnswers)
		api.GET("/funnels/:id/sections", cfg.Funnels.ListSections)
		api.GET("/funnels/:id/sections/:section/history", cfg.Funnels.History)
		api.POST("/funnels/:id/sections/:section/approve", cfg.Funnels.Approve)
		api.POST("/funnels/:id/sections/:section/lock", cfg.Funnels.SetLocked)

		api.POST("/funnels/:id/regenerate", cfg.Regenerate.Regenerate)
		api.GET("/funnels/:id/jobs/latest", cfg.Jobs.LatestForFunnel)
		api.GET("/jobs/:id", cfg.Jobs.Get)

		api.GET("/funnels/:id/events", cfg.Events.Stream)
	}

	return r
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
