package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"lifelink/internal/domain"
	"lifelink/internal/repository"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

// Directory resolves donors and patients. It reports absence and leaves any fallback
// naming to the caller.
type Directory interface {
	DisplayName(ctx context.Context, ident domain.Identity) (name string, found bool, err error)
	Register(ctx context.Context, p *domain.Participant, password string) (*domain.Participant, error)
}

type directory struct {
	participantRepo repository.ParticipantRepository
	bcryptCost      int
	log             logger.Logger
}

func NewDirectory(participantRepo repository.ParticipantRepository, log logger.Logger) Directory {
	return &directory{
		participantRepo: participantRepo,
		bcryptCost:      bcrypt.DefaultCost,
		log:             log,
	}
}

func (d *directory) DisplayName(ctx context.Context, ident domain.Identity) (string, bool, error) {
	p, err := d.participantRepo.GetByID(ctx, ident)
	if err != nil {
		if errors.Is(err, apperrors.ErrParticipantNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return "", false, nil
	}
	return name, true, nil
}

func (d *directory) Register(ctx context.Context, p *domain.Participant, password string) (*domain.Participant, error) {
	if !p.Kind.Valid() {
		return nil, apperrors.NewValidationError("type", fmt.Sprintf("unknown participant kind %q", string(p.Kind)))
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}
	if email := strings.TrimSpace(p.Email); email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("email", "invalid email format")
	}
	bloodType, ok := domain.NormalizeBloodType(p.BloodType)
	if !ok {
		return nil, apperrors.NewValidationError("blood_type", fmt.Sprintf("unknown blood type %q", p.BloodType))
	}
	p.BloodType = bloodType
	if len(password) < 8 {
		return nil, apperrors.NewValidationError("password", "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.bcryptCost)
	if err != nil {
		d.log.Error("Failed to hash password", "error", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	p.PasswordHash = string(hash)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	if err := d.participantRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	d.log.Info("Participant registered", "participant", p.Identity.String())
	return p, nil
}
