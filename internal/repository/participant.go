package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"lifelink/internal/domain"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

// ParticipantRepository is the donor/patient directory.
type ParticipantRepository interface {
	Create(ctx context.Context, p *domain.Participant) error
	GetByID(ctx context.Context, ident domain.Identity) (*domain.Participant, error)
	GetByEmail(ctx context.Context, kind domain.ParticipantKind, email string) (*domain.Participant, error)
}

type participantRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewParticipantRepository(db *pgxpool.Pool, log logger.Logger) ParticipantRepository {
	return &participantRepository{db: db, log: log}
}

// participantTable maps a kind to its table. Kinds are validated, so the result is
// always one of two constants and safe to interpolate.
func participantTable(kind domain.ParticipantKind) (string, error) {
	switch kind {
	case domain.KindDonor:
		return "donors", nil
	case domain.KindPatient:
		return "patients", nil
	default:
		return "", apperrors.NewValidationError("participant_kind", fmt.Sprintf("unknown participant kind %q", string(kind)))
	}
}

func (r *participantRepository) Create(ctx context.Context, p *domain.Participant) error {
	table, err := participantTable(p.Kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name, email, password_hash, phone, blood_type, city, is_available, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, table)

	p.Email = normalizeEmail(p.Email)
	err = r.db.QueryRow(ctx, query,
		p.Name, p.Email, p.PasswordHash, p.Phone, p.BloodType, p.City, p.IsAvailable, p.CreatedAt,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.log.Warn("Participant already exists (unique violation)", "email", p.Email, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%s with this email: %w", p.Kind, apperrors.ErrAlreadyExists)
		}
		r.log.Error("Failed to create participant", "error", err, "kind", p.Kind)
		return fmt.Errorf("create participant: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	return nil
}

func (r *participantRepository) GetByID(ctx context.Context, ident domain.Identity) (*domain.Participant, error) {
	table, err := participantTable(ident.Kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, name, email, password_hash, phone, blood_type, city, is_available, created_at
		FROM %s
		WHERE id = $1
	`, table)

	return r.scanOne(ctx, ident.Kind, query, ident.ID)
}

func (r *participantRepository) GetByEmail(ctx context.Context, kind domain.ParticipantKind, email string) (*domain.Participant, error) {
	table, err := participantTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, name, email, password_hash, phone, blood_type, city, is_available, created_at
		FROM %s
		WHERE email = $1
	`, table)

	return r.scanOne(ctx, kind, query, normalizeEmail(email))
}

func (r *participantRepository) scanOne(ctx context.Context, kind domain.ParticipantKind, query string, arg interface{}) (*domain.Participant, error) {
	p := &domain.Participant{Identity: domain.Identity{Kind: kind}}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.Phone, &p.BloodType, &p.City,
		&p.IsAvailable, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrParticipantNotFound
		}
		r.log.Error("Failed to get participant", "error", err, "kind", kind)
		return nil, fmt.Errorf("get participant: %w: %w", apperrors.ErrStorageUnavailable, err)
	}
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
