package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"lifelink/internal/domain"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessage(t *testing.T, sender, receiver domain.Identity, text string, at time.Time) *domain.ChatMessage {
	t.Helper()
	msg, err := domain.NewChatMessage(sender, receiver, text)
	require.NoError(t, err)
	msg.CreatedAt = at
	return msg
}

var (
	donor7   = domain.Identity{ID: 7, Kind: domain.KindDonor}
	patient3 = domain.Identity{ID: 3, Kind: domain.KindPatient}
	patient7 = domain.Identity{ID: 7, Kind: domain.KindPatient}
)

func TestBadger_CreateAssignsIncreasingIDs(t *testing.T) {
	req := require.New(t)
	repo, err := NewBadgerChatRepository(openTestBadger(t), logger.Nop())
	req.NoError(err)

	ctx := context.Background()
	now := time.Now().UTC()
	var last int64
	for i := 0; i < 5; i++ {
		msg := newMessage(t, donor7, patient3, fmt.Sprintf("msg %d", i), now)
		req.NoError(repo.Create(ctx, msg))
		req.Greater(msg.ID, last)
		last = msg.ID
	}
}

func TestBadger_HistoryIsSymmetricAndOrdered(t *testing.T) {
	req := require.New(t)
	repo, err := NewBadgerChatRepository(openTestBadger(t), logger.Nop())
	req.NoError(err)

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	// Inserted out of time order and with a tie to exercise the (created_at, id) ordering.
	req.NoError(repo.Create(ctx, newMessage(t, donor7, patient3, "second", base.Add(time.Minute))))
	req.NoError(repo.Create(ctx, newMessage(t, patient3, donor7, "first", base)))
	req.NoError(repo.Create(ctx, newMessage(t, donor7, patient3, "tie-a", base.Add(2*time.Minute))))
	req.NoError(repo.Create(ctx, newMessage(t, patient3, donor7, "tie-b", base.Add(2*time.Minute))))

	forward, err := repo.ListConversation(ctx, donor7, patient3)
	req.NoError(err)
	backward, err := repo.ListConversation(ctx, patient3, donor7)
	req.NoError(err)
	req.Equal(forward, backward)

	texts := make([]string, 0, len(forward))
	for _, m := range forward {
		texts = append(texts, m.Text)
	}
	req.Equal([]string{"first", "second", "tie-a", "tie-b"}, texts)
	req.Less(forward[2].ID, forward[3].ID)
}

func TestBadger_HistorySeparatesKinds(t *testing.T) {
	req := require.New(t)
	repo, err := NewBadgerChatRepository(openTestBadger(t), logger.Nop())
	req.NoError(err)

	ctx := context.Background()
	now := time.Now().UTC()
	req.NoError(repo.Create(ctx, newMessage(t, donor7, patient3, "to patient 3", now)))
	req.NoError(repo.Create(ctx, newMessage(t, donor7, patient7, "to patient 7", now)))

	history, err := repo.ListConversation(ctx, donor7, patient7)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("to patient 7", history[0].Text)
}

func TestBadger_HistoryEmptyConversation(t *testing.T) {
	req := require.New(t)
	repo, err := NewBadgerChatRepository(openTestBadger(t), logger.Nop())
	req.NoError(err)

	history, err := repo.ListConversation(context.Background(), donor7, patient3)
	req.NoError(err)
	req.NotNil(history)
	req.Empty(history)
}

func TestBadger_ConcurrentCreatesGetUniqueIDs(t *testing.T) {
	req := require.New(t)
	repo, err := NewBadgerChatRepository(openTestBadger(t), logger.Nop())
	req.NoError(err)

	ctx := context.Background()
	const writers = 20
	var wg sync.WaitGroup
	ids := make(chan int64, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := domain.NewChatMessage(donor7, patient3, fmt.Sprintf("hello %d", i))
			if err != nil {
				return
			}
			msg.CreatedAt = time.Now().UTC()
			if repo.Create(ctx, msg) == nil {
				ids <- msg.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		req.False(seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	req.Len(seen, writers)

	history, err := repo.ListConversation(ctx, patient3, donor7)
	req.NoError(err)
	req.Len(history, writers)
}

func TestBadger_Participants(t *testing.T) {
	req := require.New(t)
	repo, err := NewBadgerParticipantRepository(openTestBadger(t), logger.Nop())
	req.NoError(err)

	ctx := context.Background()
	alice := &domain.Participant{
		Identity: domain.Identity{Kind: domain.KindDonor},
		Name:     "Alice",
		Email:    " Alice@Example.com ",
	}
	req.NoError(repo.Create(ctx, alice))
	req.Equal(int64(1), alice.ID)
	req.Equal("alice@example.com", alice.Email)

	// Same email under the other kind is a different directory entry.
	bob := &domain.Participant{Identity: domain.Identity{Kind: domain.KindPatient}, Name: "Bob", Email: "alice@example.com"}
	req.NoError(repo.Create(ctx, bob))
	req.Equal(int64(1), bob.ID)

	dup := &domain.Participant{Identity: domain.Identity{Kind: domain.KindDonor}, Name: "Other", Email: "ALICE@example.com"}
	err = repo.Create(ctx, dup)
	req.ErrorIs(err, apperrors.ErrAlreadyExists)

	got, err := repo.GetByID(ctx, domain.Identity{ID: 1, Kind: domain.KindDonor})
	req.NoError(err)
	req.Equal("Alice", got.Name)

	got, err = repo.GetByEmail(ctx, domain.KindPatient, "ALICE@EXAMPLE.COM")
	req.NoError(err)
	req.Equal("Bob", got.Name)

	_, err = repo.GetByID(ctx, domain.Identity{ID: 99, Kind: domain.KindPatient})
	req.ErrorIs(err, apperrors.ErrParticipantNotFound)

	_, err = repo.GetByID(ctx, domain.Identity{ID: 1, Kind: "nurse"})
	req.ErrorIs(err, apperrors.ErrValidation)
}

func TestBadger_RepositoriesClose(t *testing.T) {
	req := require.New(t)
	db, err := OpenBadger("", true)
	req.NoError(err)

	repos, err := NewBadgerRepositories(db, nil, logger.Nop())
	req.NoError(err)
	req.Nil(repos.RateLimit)
	req.NoError(repos.Close())
}
