package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"lifelink/internal/service"
	"lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// Limit counts requests per authenticated participant, or per client IP otherwise.
// Rejections go through c.Error, so ErrorHandler must be installed ahead of it.
func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if ident, ok := ParticipantFromContext(c); ok {
			key = "participant:" + ident.String()
		}
		limit := m.rateLimitService.Limit()

		allowed, remaining, err := m.rateLimitService.Allow(c.Request.Context(), key)
		if err != nil {
			m.log.Error("Rate limit check failed", "error", err)
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			m.log.Warn("Rate limit exceeded", "key", key)
			_ = c.Error(errors.ErrRateLimited)
			c.Abort()
			return
		}

		c.Next()
	}
}
