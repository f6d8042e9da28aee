package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"lifelink/internal/domain"
	"lifelink/internal/repository"
	"lifelink/pkg/logger"
)

type testRepos struct {
	chat         repository.ChatRepository
	participants repository.ParticipantRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	db, err := repository.OpenBadger("", true)
	require.NoError(t, err)

	repos, err := repository.NewBadgerRepositories(db, nil, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	return testRepos{chat: repos.Chat, participants: repos.Participant}
}

func newTestDirectory(repo repository.ParticipantRepository) *directory {
	return &directory{participantRepo: repo, bcryptCost: bcrypt.MinCost, log: logger.Nop()}
}

func register(t *testing.T, d Directory, kind domain.ParticipantKind, name, email string) domain.Identity {
	t.Helper()
	p, err := d.Register(context.Background(), &domain.Participant{
		Identity: domain.Identity{Kind: kind},
		Name:     name,
		Email:    email,
	}, "password123")
	require.NoError(t, err)
	return p.Identity
}

// failingChatRepository simulates an unavailable store.
type failingChatRepository struct {
	mu      sync.Mutex
	creates int
}

var errStoreDown = errors.New("store down")

func (r *failingChatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	return errStoreDown
}

func (r *failingChatRepository) ListConversation(ctx context.Context, a, b domain.Identity) ([]*domain.ChatMessage, error) {
	return nil, errStoreDown
}

// nilHistoryRepository returns a nil slice, which History must normalise.
type nilHistoryRepository struct{ failingChatRepository }

func (r *nilHistoryRepository) ListConversation(ctx context.Context, a, b domain.Identity) ([]*domain.ChatMessage, error) {
	return nil, nil
}
