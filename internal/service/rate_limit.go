package service

import (
	"context"
	"time"

	"lifelink/internal/config"
	"lifelink/internal/repository"
	"lifelink/pkg/logger"
)

type RateLimitService interface {
	// Allow counts a hit for key and reports whether it is within the window's limit,
	// along with the hits left.
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
	Limit() int
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	limit         int
	window        time.Duration
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		limit:         cfg.Limit,
		window:        cfg.Window,
		log:           log,
	}
}

func (s *rateLimitService) Limit() int { return s.limit }

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, int, error) {
	allowed, err := s.rateLimitRepo.CheckLimit(ctx, key, s.limit, s.window)
	if err != nil {
		return false, 0, err
	}
	if !allowed {
		return false, 0, nil
	}

	count, err := s.rateLimitRepo.Increment(ctx, key, s.window)
	if err != nil {
		s.log.Error("Rate limit increment failed", "error", err, "key", key)
		return true, 0, nil
	}

	remaining := s.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}
