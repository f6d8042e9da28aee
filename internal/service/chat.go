package service

import (
	"context"
	"errors"
	"time"

	"lifelink/internal/domain"
	"lifelink/internal/metrics"
	"lifelink/internal/repository"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

// ChatService is the message store: append-only, queried per conversation.
type ChatService interface {
	Append(ctx context.Context, sender, receiver domain.Identity, text string) (*domain.ChatMessage, error)
	// AppendRaw is Append for callers holding unparsed participant kinds.
	AppendRaw(ctx context.Context, senderID int64, senderKind string, receiverID int64, receiverKind string, text string) (*domain.ChatMessage, error)
	// History never returns a nil slice.
	History(ctx context.Context, a, b domain.Identity) ([]*domain.ChatMessage, error)
}

type chatService struct {
	chatRepo repository.ChatRepository
	now      func() time.Time
	log      logger.Logger
}

func NewChatService(chatRepo repository.ChatRepository, log logger.Logger) ChatService {
	return newChatService(chatRepo, time.Now, log)
}

func newChatService(chatRepo repository.ChatRepository, now func() time.Time, log logger.Logger) *chatService {
	return &chatService{
		chatRepo: chatRepo,
		now:      now,
		log:      log,
	}
}

func (s *chatService) Append(ctx context.Context, sender, receiver domain.Identity, text string) (*domain.ChatMessage, error) {
	msg, err := domain.NewChatMessage(sender, receiver, text)
	if err != nil {
		metrics.AppendFailures.WithLabelValues(metrics.ReasonValidation).Inc()
		return nil, err
	}
	// Postgres keeps microseconds; truncating here makes every driver agree.
	msg.CreatedAt = s.now().UTC().Truncate(time.Microsecond)

	if err := s.chatRepo.Create(ctx, msg); err != nil {
		metrics.AppendFailures.WithLabelValues(metrics.ReasonStorage).Inc()
		return nil, err
	}

	metrics.MessagesAppended.Inc()
	s.log.Debug("Chat message stored", "id", msg.ID, "conversation", msg.ConversationKey())
	return msg, nil
}

func (s *chatService) AppendRaw(ctx context.Context, senderID int64, senderKind string, receiverID int64, receiverKind string, text string) (*domain.ChatMessage, error) {
	sender, err := domain.NewIdentity(senderID, senderKind)
	if err != nil {
		metrics.AppendFailures.WithLabelValues(metrics.ReasonValidation).Inc()
		return nil, prefixField(err, "sender")
	}
	receiver, err := domain.NewIdentity(receiverID, receiverKind)
	if err != nil {
		metrics.AppendFailures.WithLabelValues(metrics.ReasonValidation).Inc()
		return nil, prefixField(err, "receiver")
	}
	return s.Append(ctx, sender, receiver, text)
}

func (s *chatService) History(ctx context.Context, a, b domain.Identity) ([]*domain.ChatMessage, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	messages, err := s.chatRepo.ListConversation(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*domain.ChatMessage{}
	}
	return messages, nil
}

// prefixField renames participant_kind/participant_id to sender_type/sender_id etc.
func prefixField(err error, prefix string) error {
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	switch ve.Field {
	case "participant_kind":
		return apperrors.NewValidationError(prefix+"_type", ve.Reason)
	case "participant_id":
		return apperrors.NewValidationError(prefix+"_id", ve.Reason)
	default:
		return err
	}
}
