package repository

import (
	"errors"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"lifelink/pkg/logger"
)

type Repositories struct {
	Chat        ChatRepository
	Participant ParticipantRepository
	// RateLimit is nil when redis is not configured.
	RateLimit RateLimitRepository

	closers []func() error
}

func newRateLimit(redis *redis.Client, log logger.Logger) RateLimitRepository {
	if redis == nil {
		return nil
	}
	return NewRateLimitRepository(redis, log)
}

func NewPostgresRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	log.Info("Using postgres chat storage")
	return &Repositories{
		Chat:        NewChatRepository(db, log),
		Participant: NewParticipantRepository(db, log),
		RateLimit:   newRateLimit(redis, log),
		closers: []func() error{
			func() error { db.Close(); return nil },
		},
	}
}

func NewSQLiteRepositories(db *gorm.DB, redis *redis.Client, log logger.Logger) *Repositories {
	log.Info("Using sqlite chat storage")
	return &Repositories{
		Chat:        NewGormChatRepository(db, log),
		Participant: NewGormParticipantRepository(db, log),
		RateLimit:   newRateLimit(redis, log),
		closers: []func() error{
			func() error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		},
	}
}

func NewBadgerRepositories(db *badger.DB, redis *redis.Client, log logger.Logger) (*Repositories, error) {
	chat, err := NewBadgerChatRepository(db, log)
	if err != nil {
		return nil, err
	}
	participants, err := NewBadgerParticipantRepository(db, log)
	if err != nil {
		return nil, err
	}

	log.Info("Using badger chat storage")
	repos := &Repositories{
		Chat:        chat,
		Participant: participants,
		RateLimit:   newRateLimit(redis, log),
	}
	// Sequences must be released before the database closes.
	for _, r := range []interface{}{chat, participants} {
		if c, ok := r.(io.Closer); ok {
			repos.closers = append(repos.closers, c.Close)
		}
	}
	repos.closers = append(repos.closers, db.Close)
	return repos, nil
}

// Close releases the storage handles in the order they were acquired.
func (r *Repositories) Close() error {
	var errs []error
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
