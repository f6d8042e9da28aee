package service

import (
	"lifelink/internal/broker"
	"lifelink/internal/config"
	"lifelink/internal/hub"
	"lifelink/internal/repository"
	"lifelink/pkg/logger"
)

type Services struct {
	Chat      ChatService
	Directory Directory
	Relay     Relay
	Auth      AuthService
	// RateLimit is nil unless rate limiting is enabled and redis is available.
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, h *hub.Hub, b broker.Broker, cfg *config.Config, log logger.Logger) *Services {
	chat := NewChatService(repos.Chat, log)
	directory := NewDirectory(repos.Participant, log)

	services := &Services{
		Chat:      chat,
		Directory: directory,
		Relay:     NewRelay(chat, directory, h, b, log),
		Auth:      NewAuthService(repos.Participant, cfg.JWT, log),
	}

	if cfg.RateLimit.Enabled && repos.RateLimit != nil {
		services.RateLimit = NewRateLimitService(repos.RateLimit, cfg.RateLimit, log)
		log.Info("Rate limiting enabled", "limit", cfg.RateLimit.Limit, "window", cfg.RateLimit.Window.String())
	} else if cfg.RateLimit.Enabled {
		log.Warn("Rate limiting requested but redis is not configured")
	}

	return services
}
