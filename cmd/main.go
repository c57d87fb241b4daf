package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matchahq/matcha-backend/internal/clients/openrouter"
	redisclient "github.com/matchahq/matcha-backend/internal/clients/redis"
	"github.com/matchahq/matcha-backend/internal/db"
	"github.com/matchahq/matcha-backend/internal/handlers"
	"github.com/matchahq/matcha-backend/internal/jobs"
	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/middleware"
	"github.com/matchahq/matcha-backend/internal/observability"
	"github.com/matchahq/matcha-backend/internal/repos"
	"github.com/matchahq/matcha-backend/internal/server"
	"github.com/matchahq/matcha-backend/internal/services"
	"github.com/matchahq/matcha-backend/internal/utils"
)

func main() {
	// Logger
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

	// Env
	log.Info("Loading environment variables from main...")
	port := utils.GetEnv("PORT", "8080", log)
	shutdownTimeout := utils.GetEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 15, log)

	// Tracing
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "matcha-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Redis
	rdb, err := redisclient.NewClient(log)
	if err != nil {
		log.Error("Redis init failed", "error", err)
		os.Exit(1)
	}
	cacheService := redisclient.NewCacheService(log, rdb)
	analysisQueue := redisclient.NewQueue(log, rdb, "analysis")

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	conversationRepo := repos.NewConversationRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	usageLimitRepo := repos.NewUsageLimitRepo(thePG, log)
	analysisRepo := repos.NewAnalysisRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	aiClient, err := openrouter.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenRouter client", "error", err)
		os.Exit(1)
	}
	verifier, err := services.NewClerkVerifier(log)
	if err != nil {
		log.Error("Could not init Clerk verifier", "error", err)
		os.Exit(1)
	}
	safetyConfig, err := services.LoadSafetyConfig(log)
	if err != nil {
		log.Error("Could not load safety config", "error", err)
		os.Exit(1)
	}
	authService := services.NewAuthService(thePG, log, userRepo, verifier)
	usageService := services.NewUsageService(thePG, log, usageLimitRepo, cacheService)
	safetyGuard := services.NewSafetyGuard(log, safetyConfig)
	chatService := services.NewChatService(log, conversationRepo, messageRepo, usageService, safetyGuard, aiClient)
	analysisService := services.NewAnalysisService(log, analysisRepo, usageService, analysisQueue)
	userService := services.NewUserService(log, userRepo)
	dashboardService := services.NewDashboardService(log, userRepo, analysisRepo)

	// Worker
	analysisWorker := jobs.NewAnalysisWorker(log, analysisQueue, analysisRepo, aiClient)
	analysisWorker.Start(ctx)

	// Handlers
	log.Info("Setting up handlers from main...")
	userHandler := handlers.NewUserHandler(userService)
	chatHandler := handlers.NewChatHandler(chatService, usageService)
	analysisHandler := handlers.NewAnalysisHandler(analysisService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)
	rateLimiter := middleware.NewRateLimiter(log, rdb)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:   authMiddleware,
		RateLimiter:      rateLimiter,
		UserHandler:      userHandler,
		ChatHandler:      chatHandler,
		AnalysisHandler:  analysisHandler,
		DashboardHandler: dashboardHandler,
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
	if otelShutdown != nil {
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn("otel shutdown failed", "error", err)
		}
	}
	log.Info("Shutdown complete")
}
