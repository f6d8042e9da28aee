package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"lifelink/internal/config"
	"lifelink/internal/domain"
	"lifelink/internal/repository"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/jwt"
	"lifelink/pkg/logger"
)

// AuthService issues and checks participant access tokens. Tokens let a websocket
// connection derive its conversation rooms from its own identity.
type AuthService interface {
	Login(ctx context.Context, kind, email, password string) (*LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (domain.Identity, error)
}

type LoginResponse struct {
	Participant *domain.Participant `json:"participant"`
	AccessToken string              `json:"access_token"`
}

type authService struct {
	participantRepo repository.ParticipantRepository
	jwtCfg          config.JWTConfig
	log             logger.Logger
}

func NewAuthService(participantRepo repository.ParticipantRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		participantRepo: participantRepo,
		jwtCfg:          jwtCfg,
		log:             log,
	}
}

func (s *authService) Login(ctx context.Context, kind, email, password string) (*LoginResponse, error) {
	k, err := domain.ParseParticipantKind(kind)
	if err != nil {
		return nil, apperrors.NewValidationError("type", fmt.Sprintf("unknown participant kind %q", kind))
	}

	p, err := s.participantRepo.GetByEmail(ctx, k, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrParticipantNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("Failed login attempt", "participant", p.Identity.String())
		return nil, apperrors.ErrInvalidCredentials
	}

	token, err := jwt.GenerateAccessToken(p.ID, string(p.Kind), p.Name, s.jwtCfg.Secret, s.jwtCfg.Issuer, s.jwtCfg.TTL)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err)
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{Participant: p, AccessToken: token}, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (domain.Identity, error) {
	claims, err := jwt.ValidateToken(tokenString, s.jwtCfg.Secret)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return domain.Identity{}, apperrors.ErrTokenExpired
		}
		return domain.Identity{}, apperrors.ErrInvalidToken
	}

	ident, err := domain.NewIdentity(claims.ParticipantID, claims.ParticipantKind)
	if err != nil {
		return domain.Identity{}, apperrors.ErrInvalidToken
	}
	return ident, nil
}
