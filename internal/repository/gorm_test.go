package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"lifelink/internal/domain"
	apperrors "lifelink/pkg/errors"
	"lifelink/pkg/logger"
)

func openTestSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "instance", "lifelink.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestSQLite_HistoryIsSymmetricAndOrdered(t *testing.T) {
	req := require.New(t)
	repo := NewGormChatRepository(openTestSQLite(t), logger.Nop())

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first := newMessage(t, donor7, patient3, "first", base)
	second := newMessage(t, patient3, donor7, "second", base.Add(time.Minute))
	other := newMessage(t, donor7, patient7, "other conversation", base)

	req.NoError(repo.Create(ctx, second))
	req.NoError(repo.Create(ctx, first))
	req.NoError(repo.Create(ctx, other))
	req.Greater(first.ID, second.ID)

	forward, err := repo.ListConversation(ctx, donor7, patient3)
	req.NoError(err)
	backward, err := repo.ListConversation(ctx, patient3, donor7)
	req.NoError(err)

	req.Len(forward, 2)
	req.Equal("first", forward[0].Text)
	req.Equal("second", forward[1].Text)
	req.Equal(forward, backward)
	req.True(forward[0].CreatedAt.Equal(base))
}

func TestSQLite_HistoryEmpty(t *testing.T) {
	req := require.New(t)
	repo := NewGormChatRepository(openTestSQLite(t), logger.Nop())

	history, err := repo.ListConversation(context.Background(), donor7, patient3)
	req.NoError(err)
	req.NotNil(history)
	req.Empty(history)
}

func TestSQLite_Participants(t *testing.T) {
	req := require.New(t)
	repo := NewGormParticipantRepository(openTestSQLite(t), logger.Nop())

	ctx := context.Background()
	p := &domain.Participant{
		Identity:  domain.Identity{Kind: domain.KindPatient},
		Name:      "Pat",
		Email:     "Pat@Example.com",
		BloodType: domain.BloodTypeONegative,
		CreatedAt: time.Now().UTC(),
	}
	req.NoError(repo.Create(ctx, p))
	req.Positive(p.ID)

	got, err := repo.GetByEmail(ctx, domain.KindPatient, "pat@example.com")
	req.NoError(err)
	req.Equal("Pat", got.Name)
	req.Equal(domain.BloodTypeONegative, got.BloodType)
	req.False(got.IsAvailable)

	_, err = repo.GetByID(ctx, domain.Identity{ID: p.ID, Kind: domain.KindDonor})
	req.ErrorIs(err, apperrors.ErrParticipantNotFound)

	err = repo.Create(ctx, &domain.Participant{Identity: domain.Identity{Kind: domain.KindPatient}, Name: "Dup", Email: "pat@example.com", CreatedAt: time.Now().UTC()})
	req.ErrorIs(err, apperrors.ErrAlreadyExists)
}

func TestSQLite_ClosedDatabaseIsStorageUnavailable(t *testing.T) {
	req := require.New(t)
	db := openTestSQLite(t)
	chats := NewGormChatRepository(db, logger.Nop())
	participants := NewGormParticipantRepository(db, logger.Nop())

	sqlDB, err := db.DB()
	req.NoError(err)
	req.NoError(sqlDB.Close())

	ctx := context.Background()
	_, err = chats.ListConversation(ctx, donor7, patient3)
	req.ErrorIs(err, apperrors.ErrStorageUnavailable)

	_, err = participants.GetByID(ctx, donor7)
	req.ErrorIs(err, apperrors.ErrStorageUnavailable)

	err = participants.Create(ctx, &domain.Participant{
		Identity:  domain.Identity{Kind: domain.KindDonor},
		Name:      "Dana",
		Email:     "dana@example.com",
		CreatedAt: time.Now().UTC(),
	})
	req.ErrorIs(err, apperrors.ErrStorageUnavailable)
}
