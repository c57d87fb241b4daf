package server

import (
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/matchahq/matcha-backend/internal/handlers"
	"github.com/matchahq/matcha-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware   *middleware.AuthMiddleware
	RateLimiter      *middleware.RateLimiter
	UserHandler      *handlers.UserHandler
	ChatHandler      *handlers.ChatHandler
	AnalysisHandler  *handlers.AnalysisHandler
	DashboardHandler *handlers.DashboardHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("matcha-backend"))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/api/plans", handlers.GetPlans)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// User
	protected.GET("/users/me", cfg.UserHandler.GetMe)
	protected.PATCH("/users/me", cfg.UserHandler.UpdateMe)
	// Chat
	protected.POST("/chat/send", cfg.RateLimiter.Limit("chat_send", 20, time.Minute), cfg.ChatHandler.SendMessage)
	protected.GET("/chat/usage", cfg.ChatHandler.GetUsage)
	// Conversations
	protected.POST("/conversations", cfg.ChatHandler.CreateConversation)
	protected.GET("/conversations", cfg.ChatHandler.ListConversations)
	protected.GET("/conversations/:id", cfg.ChatHandler.GetConversation)
	protected.PATCH("/conversations/:id", cfg.ChatHandler.UpdateConversation)
	protected.DELETE("/conversations/:id", cfg.ChatHandler.DeleteConversation)
	// Analyses
	protected.POST("/analyses", cfg.RateLimiter.Limit("analysis_create", 5, time.Minute), cfg.AnalysisHandler.Create)
	protected.GET("/analyses", cfg.AnalysisHandler.List)
	protected.GET("/analyses/:id", cfg.AnalysisHandler.Get)
	// Dashboard
	protected.GET("/dashboard", cfg.DashboardHandler.Get)

	return router
}

func allowedOrigins() []string {
	raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if raw == "" {
		return []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
