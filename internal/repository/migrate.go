package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS donors (
		id            BIGSERIAL PRIMARY KEY,
		name          VARCHAR(120) NOT NULL,
		email         VARCHAR(120) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		phone         VARCHAR(30)  NOT NULL DEFAULT '',
		blood_type    VARCHAR(5)   NOT NULL DEFAULT '',
		city          VARCHAR(120) NOT NULL DEFAULT '',
		is_available  BOOLEAN      NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id            BIGSERIAL PRIMARY KEY,
		name          VARCHAR(120) NOT NULL,
		email         VARCHAR(120) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		phone         VARCHAR(30)  NOT NULL DEFAULT '',
		blood_type    VARCHAR(5)   NOT NULL DEFAULT '',
		city          VARCHAR(120) NOT NULL DEFAULT '',
		is_available  BOOLEAN      NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id            BIGSERIAL PRIMARY KEY,
		sender_id     BIGINT      NOT NULL,
		sender_type   VARCHAR(20) NOT NULL CHECK (sender_type IN ('donor', 'patient')),
		receiver_id   BIGINT      NOT NULL,
		receiver_type VARCHAR(20) NOT NULL CHECK (receiver_type IN ('donor', 'patient')),
		message       TEXT        NOT NULL CHECK (length(message) > 0),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_pair
		ON chat_messages (sender_type, sender_id, receiver_type, receiver_id, created_at, id)`,
}

// MigratePostgres creates the chat and directory tables when they are missing.
func MigratePostgres(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
