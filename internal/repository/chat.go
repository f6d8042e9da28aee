package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"lifelink/internal/domain"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

// ChatRepository is the append-only message log. Implementations assign ID and keep
// CreatedAt as given; Create must fill msg.ID on success.
type ChatRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	// ListConversation returns every message between a and b, in either direction,
	// ordered by created_at then id. It returns an empty slice when there are none.
	ListConversation(ctx context.Context, a, b domain.Identity) ([]*domain.ChatMessage, error)
}

type chatRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewChatRepository(db *pgxpool.Pool, log logger.Logger) ChatRepository {
	return &chatRepository{db: db, log: log}
}

func (r *chatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (sender_id, sender_type, receiver_id, receiver_type, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		msg.Sender.ID, string(msg.Sender.Kind), msg.Receiver.ID, string(msg.Receiver.Kind),
		msg.Text, msg.CreatedAt,
	).Scan(&msg.ID, &msg.CreatedAt)

	if err != nil {
		r.log.Error("Failed to create chat message", "error", err, "sender", msg.Sender.String())
		return fmt.Errorf("create chat message: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	msg.CreatedAt = msg.CreatedAt.UTC()
	return nil
}

func (r *chatRepository) ListConversation(ctx context.Context, a, b domain.Identity) ([]*domain.ChatMessage, error) {
	query := `
		SELECT id, sender_id, sender_type, receiver_id, receiver_type, message, created_at
		FROM chat_messages
		WHERE (sender_id = $1 AND sender_type = $2 AND receiver_id = $3 AND receiver_type = $4)
		   OR (sender_id = $3 AND sender_type = $4 AND receiver_id = $1 AND receiver_type = $2)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, a.ID, string(a.Kind), b.ID, string(b.Kind))
	if err != nil {
		r.log.Error("Failed to list conversation", "error", err, "conversation", domain.ConversationKey(a, b))
		return nil, fmt.Errorf("list conversation: %w: %w", apperrors.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0)
	for rows.Next() {
		msg := &domain.ChatMessage{}
		var senderType, receiverType string
		err := rows.Scan(
			&msg.ID, &msg.Sender.ID, &senderType, &msg.Receiver.ID, &receiverType,
			&msg.Text, &msg.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan chat message", "error", err)
			return nil, fmt.Errorf("list conversation: %w: %w", apperrors.ErrStorageUnavailable, err)
		}
		msg.Sender.Kind = domain.ParticipantKind(senderType)
		msg.Receiver.Kind = domain.ParticipantKind(receiverType)
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		r.log.Error("Failed to iterate conversation", "error", err)
		return nil, fmt.Errorf("list conversation: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	return messages, nil
}
