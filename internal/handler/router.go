package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"lifelink/internal/config"
	"lifelink/internal/middleware"
	"lifelink/internal/service"
	"lifelink/pkg/logger"
)

// NewRouter wires every route. Rate limiting is applied to the chat API only when the
// service is configured.
func NewRouter(handlers *Handlers, services *service.Services, cfg *config.Config, log logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.ErrorHandler(log))

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, log)
	chatLimits := []gin.HandlerFunc{authMiddleware.OptionalAuth()}
	if services.RateLimit != nil {
		chatLimits = append(chatLimits, middleware.NewRateLimitMiddleware(services.RateLimit, log).Limit())
	}

	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Path used by the existing web client.
	router.GET("/chat/history", append(chatLimits, handlers.Chat.History)...)

	router.GET("/ws/chat", authMiddleware.OptionalAuth(), handlers.WebSocket.HandleChat)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Auth.Register)
			auth.POST("/token", handlers.Auth.Token)
		}

		chat := api.Group("/chat")
		chat.Use(chatLimits...)
		{
			chat.GET("/history", handlers.Chat.History)
			chat.GET("/room-key", handlers.Chat.RoomKey)
			chat.POST("/messages", authMiddleware.RequireAuth(), handlers.Chat.SendMessage)
		}
	}

	return router
}
