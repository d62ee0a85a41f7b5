package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/funnelforge-backend/internal/db"
	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/handlers"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/middleware"
	"github.com/yungbote/funnelforge-backend/internal/observability"
	"github.com/yungbote/funnelforge-backend/internal/repos"
	"github.com/yungbote/funnelforge-backend/internal/server"
	"github.com/yungbote/funnelforge-backend/internal/services"
	"github.com/yungbote/funnelforge-backend/internal/sse"
	"github.com/yungbote/funnelforge-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// A bad dependency graph is a build mistake, not a runtime condition.
	if err := graph.Validate(); err != nil {
		log.Fatal("Section dependency graph invalid", "error", err)
	}

	// Env
	jwtSecret := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	port := utils.GetEnv("PORT", "8080", log)
	allowedOrigins := utils.GetEnv("ALLOWED_ORIGINS", "", log)
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	redisChannel := utils.GetEnv("REDIS_SSE_CHANNEL", "funnelforge:sse", log)
	serviceVersion := utils.GetEnv("SERVICE_VERSION", "dev", log)

	// Tracing (gated on OTEL_ENABLED)
	otelShutdown := observability.Init(context.Background(), log, observability.Config{
		Environment: logMode,
		Version:     serviceVersion,
	})
	if otelShutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(ctx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	defer postgresService.Close()
	thePG := postgresService.DB

	// Repos
	log.Info("Setting up Repos from main...")
	funnelRepo := repos.NewFunnelRepo(thePG, log)
	sectionRepo := repos.NewSectionDocumentRepo(thePG, log)
	lockRepo := repos.NewSectionLockRepo(thePG, log)
	jobRepo := repos.NewGenerationJobRepo(thePG, log)
	callLogRepo := repos.NewAICallLogRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)

	var bus sse.Bus
	if redisAddr != "" {
		bus, err = sse.NewRedisBus(log, redisAddr, redisChannel)
		if err != nil {
			log.Warn("Redis bus init failed, events stay process-local", "error", err)
			bus = nil
		} else {
			defer bus.Close()
			if err := bus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
				log.Warn("Redis bus forwarder failed to start", "error", err)
			}
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	aiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Fatal("OpenAI client init failed", "error", err)
	}
	resolver := services.NewContextResolver(sectionRepo, log)
	generator := services.NewSectionGenerator(aiClient, callLogRepo, log)
	regenSvc := services.NewRegenerationService(funnelRepo, sectionRepo, lockRepo, jobRepo, resolver, generator, sseHub, bus, log)
	funnelSvc := services.NewFunnelService(funnelRepo, sectionRepo, log)
	jobSvc := services.NewJobService(jobRepo, funnelRepo, log)

	// Handlers
	log.Info("Setting up Handlers from main...")
	router := server.NewRouter(server.RouterConfig{
		Mode:           logMode,
		AllowedOrigins: allowedOrigins,
		Healthcheck:    handlers.NewHealthcheckHandler(),
		Funnels:        handlers.NewFunnelHandler(funnelSvc, log),
		Regenerate:     handlers.NewRegenerateHandler(regenSvc, log),
		Jobs:           handlers.NewJobHandler(jobSvc, log),
		Events:         handlers.NewSSEHandler(sseHub, log),
		Auth:           middleware.NewAuthMiddleware(jwtSecret, log),
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", "error", err)
	}
}
