package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"lifelink/internal/domain"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

// OpenSQLite opens (and migrates) the embedded SQLite database at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&chatMessageModel{}, &donorModel{}, &patientModel{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

type chatMessageModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	SenderID     int64     `gorm:"not null;index:idx_chat_messages_pair,priority:2"`
	SenderType   string    `gorm:"size:20;not null;index:idx_chat_messages_pair,priority:1"`
	ReceiverID   int64     `gorm:"not null;index:idx_chat_messages_pair,priority:4"`
	ReceiverType string    `gorm:"size:20;not null;index:idx_chat_messages_pair,priority:3"`
	Message      string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

func (chatMessageModel) TableName() string { return "chat_messages" }

func (m *chatMessageModel) toDomain() *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:        m.ID,
		Sender:    domain.Identity{ID: m.SenderID, Kind: domain.ParticipantKind(m.SenderType)},
		Receiver:  domain.Identity{ID: m.ReceiverID, Kind: domain.ParticipantKind(m.ReceiverType)},
		Text:      m.Message,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type gormChatRepository struct {
	db  *gorm.DB
	log logger.Logger
}

func NewGormChatRepository(db *gorm.DB, log logger.Logger) ChatRepository {
	return &gormChatRepository{db: db, log: log}
}

func (r *gormChatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	model := &chatMessageModel{
		SenderID:     msg.Sender.ID,
		SenderType:   string(msg.Sender.Kind),
		ReceiverID:   msg.Receiver.ID,
		ReceiverType: string(msg.Receiver.Kind),
		Message:      msg.Text,
		CreatedAt:    msg.CreatedAt,
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		r.log.Error("Failed to create chat message", "error", err, "sender", msg.Sender.String())
		return fmt.Errorf("create chat message: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	msg.ID = model.ID
	msg.CreatedAt = model.CreatedAt.UTC()
	return nil
}

func (r *gormChatRepository) ListConversation(ctx context.Context, a, b domain.Identity) ([]*domain.ChatMessage, error) {
	var rows []chatMessageModel
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND sender_type = ? AND receiver_id = ? AND receiver_type = ?) OR "+
			"(sender_id = ? AND sender_type = ? AND receiver_id = ? AND receiver_type = ?)",
			a.ID, string(a.Kind), b.ID, string(b.Kind),
			b.ID, string(b.Kind), a.ID, string(a.Kind)).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		r.log.Error("Failed to list conversation", "error", err, "conversation", domain.ConversationKey(a, b))
		return nil, fmt.Errorf("list conversation: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	messages := make([]*domain.ChatMessage, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].toDomain())
	}
	return messages, nil
}

// ParticipantRow holds the columns shared by the donors and patients tables.
type ParticipantRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Name         string    `gorm:"size:120;not null"`
	Email        string    `gorm:"size:120;not null;uniqueIndex"`
	PasswordHash string    `gorm:"size:255;not null"`
	Phone        string    `gorm:"size:30"`
	BloodType    string    `gorm:"size:5"`
	City         string    `gorm:"size:120"`
	IsAvailable  bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type donorModel struct {
	ParticipantRow `gorm:"embedded"`
}

func (donorModel) TableName() string { return "donors" }

type patientModel struct {
	ParticipantRow `gorm:"embedded"`
}

func (patientModel) TableName() string { return "patients" }

type participantModel interface {
	record() *ParticipantRow
}

func (m *donorModel) record() *ParticipantRow   { return &m.ParticipantRow }
func (m *patientModel) record() *ParticipantRow { return &m.ParticipantRow }

func newParticipantModel(kind domain.ParticipantKind) (participantModel, error) {
	switch kind {
	case domain.KindDonor:
		return &donorModel{}, nil
	case domain.KindPatient:
		return &patientModel{}, nil
	default:
		return nil, apperrors.NewValidationError("participant_kind", fmt.Sprintf("unknown participant kind %q", string(kind)))
	}
}

type gormParticipantRepository struct {
	db  *gorm.DB
	log logger.Logger
}

func NewGormParticipantRepository(db *gorm.DB, log logger.Logger) ParticipantRepository {
	return &gormParticipantRepository{db: db, log: log}
}

func (r *gormParticipantRepository) Create(ctx context.Context, p *domain.Participant) error {
	model, err := newParticipantModel(p.Kind)
	if err != nil {
		return err
	}

	p.Email = normalizeEmail(p.Email)
	*model.record() = ParticipantRow{
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Phone:        p.Phone,
		BloodType:    p.BloodType,
		City:         p.City,
		IsAvailable:  p.IsAvailable,
		CreatedAt:    p.CreatedAt,
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
			r.log.Warn("Participant already exists", "email", p.Email, "kind", p.Kind)
			return fmt.Errorf("%s with this email: %w", p.Kind, apperrors.ErrAlreadyExists)
		}
		r.log.Error("Failed to create participant", "error", err, "kind", p.Kind)
		return fmt.Errorf("create participant: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	p.ID = model.record().ID
	p.CreatedAt = model.record().CreatedAt.UTC()
	return nil
}

func (r *gormParticipantRepository) GetByID(ctx context.Context, ident domain.Identity) (*domain.Participant, error) {
	return r.first(ctx, ident.Kind, "id = ?", ident.ID)
}

func (r *gormParticipantRepository) GetByEmail(ctx context.Context, kind domain.ParticipantKind, email string) (*domain.Participant, error) {
	return r.first(ctx, kind, "email = ?", normalizeEmail(email))
}

func (r *gormParticipantRepository) first(ctx context.Context, kind domain.ParticipantKind, cond string, arg interface{}) (*domain.Participant, error) {
	model, err := newParticipantModel(kind)
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Where(cond, arg).First(model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrParticipantNotFound
		}
		r.log.Error("Failed to get participant", "error", err, "kind", kind)
		return nil, fmt.Errorf("get participant: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	rec := model.record()
	return &domain.Participant{
		Identity:     domain.Identity{ID: rec.ID, Kind: kind},
		Name:         rec.Name,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		Phone:        rec.Phone,
		BloodType:    rec.BloodType,
		City:         rec.City,
		IsAvailable:  rec.IsAvailable,
		CreatedAt:    rec.CreatedAt.UTC(),
	}, nil
}
