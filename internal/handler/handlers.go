package handler

import (
	"lifelink/internal/config"
	"lifelink/internal/hub"
	"lifelink/internal/service"
	"lifelink/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	Chat      *ChatHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, h *hub.Hub, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(h),
		Auth:      NewAuthHandler(services.Auth, services.Directory, log),
		Chat:      NewChatHandler(services.Chat, services.Relay, log),
		WebSocket: NewWebSocketHandler(services.Relay, h, cfg, log),
	}
}
