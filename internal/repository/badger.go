package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"lifelink/internal/domain"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

const sequenceBandwidth = 100

// OpenBadger opens the embedded key-value store. An empty path or inMemory=true keeps
// everything in memory.
func OpenBadger(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if inMemory || path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return db, nil
}

type badgerMessage struct {
	ID           int64     `json:"id"`
	SenderID     int64     `json:"sender_id"`
	SenderType   string    `json:"sender_type"`
	ReceiverID   int64     `json:"receiver_id"`
	ReceiverType string    `json:"receiver_type"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

type badgerChatRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log logger.Logger

	// Held across id allocation and commit so id order matches commit order.
	mu sync.Mutex
}

func NewBadgerChatRepository(db *badger.DB, log logger.Logger) (ChatRepository, error) {
	seq, err := db.GetSequence([]byte("seq:chat_messages"), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("chat sequence: %w", err)
	}
	return &badgerChatRepository{db: db, seq: seq, log: log}, nil
}

// messageKey is "chat:<conversation>:<id padded to 20 digits>" so a prefix scan over a
// conversation walks it in id order.
func messageKey(conversation string, id int64) []byte {
	return []byte(fmt.Sprintf("chat:%s:%020d", conversation, id))
}

func (r *badgerChatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := r.seq.Next()
	if err != nil {
		r.log.Error("Failed to allocate chat message id", "error", err)
		return fmt.Errorf("create chat message: %w: %w", apperrors.ErrStorageUnavailable, err)
	}
	// Sequences start at zero; ids start at one like the SQL drivers.
	id := int64(next) + 1

	value, err := json.Marshal(badgerMessage{
		ID:           id,
		SenderID:     msg.Sender.ID,
		SenderType:   string(msg.Sender.Kind),
		ReceiverID:   msg.Receiver.ID,
		ReceiverType: string(msg.Receiver.Kind),
		Message:      msg.Text,
		CreatedAt:    msg.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg.ConversationKey(), id), value)
	})
	if err != nil {
		r.log.Error("Failed to create chat message", "error", err, "sender", msg.Sender.String())
		return fmt.Errorf("create chat message: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	msg.ID = id
	msg.CreatedAt = msg.CreatedAt.UTC()
	return nil
}

func (r *badgerChatRepository) ListConversation(ctx context.Context, a, b domain.Identity) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conversation := domain.ConversationKey(a, b)
	prefix := []byte("chat:" + conversation + ":")
	messages := make([]*domain.ChatMessage, 0)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored badgerMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if err != nil {
				return err
			}
			messages = append(messages, &domain.ChatMessage{
				ID:        stored.ID,
				Sender:    domain.Identity{ID: stored.SenderID, Kind: domain.ParticipantKind(stored.SenderType)},
				Receiver:  domain.Identity{ID: stored.ReceiverID, Kind: domain.ParticipantKind(stored.ReceiverType)},
				Text:      stored.Message,
				CreatedAt: stored.CreatedAt.UTC(),
			})
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to list conversation", "error", err, "conversation", conversation)
		return nil, fmt.Errorf("list conversation: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].ID < messages[j].ID
	})
	return messages, nil
}

// Close releases unleased sequence ids.
func (r *badgerChatRepository) Close() error {
	return r.seq.Release()
}

type badgerParticipant struct {
	ID           int64     `json:"id"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Phone        string    `json:"phone"`
	BloodType    string    `json:"blood_type"`
	City         string    `json:"city"`
	IsAvailable  bool      `json:"is_available"`
	CreatedAt    time.Time `json:"created_at"`
}

type badgerParticipantRepository struct {
	db   *badger.DB
	seqs map[domain.ParticipantKind]*badger.Sequence
	log  logger.Logger
	mu   sync.Mutex
}

func NewBadgerParticipantRepository(db *badger.DB, log logger.Logger) (ParticipantRepository, error) {
	seqs := make(map[domain.ParticipantKind]*badger.Sequence, 2)
	for _, kind := range []domain.ParticipantKind{domain.KindDonor, domain.KindPatient} {
		seq, err := db.GetSequence([]byte("seq:"+string(kind)), sequenceBandwidth)
		if err != nil {
			return nil, fmt.Errorf("%s sequence: %w", kind, err)
		}
		seqs[kind] = seq
	}
	return &badgerParticipantRepository{db: db, seqs: seqs, log: log}, nil
}

func participantKey(ident domain.Identity) []byte {
	return []byte(fmt.Sprintf("participant:%s:%020d", ident.Kind, ident.ID))
}

func participantEmailKey(kind domain.ParticipantKind, email string) []byte {
	return []byte(fmt.Sprintf("participant_email:%s:%s", kind, email))
}

func (r *badgerParticipantRepository) Create(ctx context.Context, p *domain.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seq, ok := r.seqs[p.Kind]
	if !ok {
		return apperrors.NewValidationError("participant_kind", fmt.Sprintf("unknown participant kind %q", string(p.Kind)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p.Email = normalizeEmail(p.Email)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	emailKey := participantEmailKey(p.Kind, p.Email)
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey); err == nil {
			return apperrors.ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		next, err := seq.Next()
		if err != nil {
			return err
		}
		p.ID = int64(next) + 1

		value, err := json.Marshal(badgerParticipant{
			ID:           p.ID,
			Kind:         string(p.Kind),
			Name:         p.Name,
			Email:        p.Email,
			PasswordHash: p.PasswordHash,
			Phone:        p.Phone,
			BloodType:    p.BloodType,
			City:         p.City,
			IsAvailable:  p.IsAvailable,
			CreatedAt:    p.CreatedAt.UTC(),
		})
		if err != nil {
			return err
		}
		if err := txn.Set(participantKey(p.Identity), value); err != nil {
			return err
		}
		return txn.Set(emailKey, []byte(fmt.Sprintf("%d", p.ID)))
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			r.log.Warn("Participant already exists", "email", p.Email, "kind", p.Kind)
			return fmt.Errorf("%s with this email: %w", p.Kind, apperrors.ErrAlreadyExists)
		}
		r.log.Error("Failed to create participant", "error", err, "kind", p.Kind)
		return fmt.Errorf("create participant: %w: %w", apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *badgerParticipantRepository) GetByID(ctx context.Context, ident domain.Identity) (*domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := r.seqs[ident.Kind]; !ok {
		return nil, apperrors.NewValidationError("participant_kind", fmt.Sprintf("unknown participant kind %q", string(ident.Kind)))
	}

	var stored badgerParticipant
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantKey(ident))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, apperrors.ErrParticipantNotFound
		}
		r.log.Error("Failed to get participant", "error", err, "kind", ident.Kind)
		return nil, fmt.Errorf("get participant: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	return &domain.Participant{
		Identity:     domain.Identity{ID: stored.ID, Kind: domain.ParticipantKind(stored.Kind)},
		Name:         stored.Name,
		Email:        stored.Email,
		PasswordHash: stored.PasswordHash,
		Phone:        stored.Phone,
		BloodType:    stored.BloodType,
		City:         stored.City,
		IsAvailable:  stored.IsAvailable,
		CreatedAt:    stored.CreatedAt.UTC(),
	}, nil
}

func (r *badgerParticipantRepository) GetByEmail(ctx context.Context, kind domain.ParticipantKind, email string) (*domain.Participant, error) {
	if _, ok := r.seqs[kind]; !ok {
		return nil, apperrors.NewValidationError("participant_kind", fmt.Sprintf("unknown participant kind %q", string(kind)))
	}

	var id int64
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantEmailKey(kind, normalizeEmail(email)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			_, err := fmt.Sscanf(strings.TrimSpace(string(val)), "%d", &id)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, apperrors.ErrParticipantNotFound
		}
		r.log.Error("Failed to get participant by email", "error", err, "kind", kind)
		return nil, fmt.Errorf("get participant: %w: %w", apperrors.ErrStorageUnavailable, err)
	}

	return r.GetByID(ctx, domain.Identity{ID: id, Kind: kind})
}

func (r *badgerParticipantRepository) Close() error {
	var firstErr error
	for _, seq := range r.seqs {
		if err := seq.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
