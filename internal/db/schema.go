package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// users is owned by the account service; it is created here only so a fresh
// database can run this core on its own.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         SERIAL PRIMARY KEY,
		username   TEXT NOT NULL UNIQUE,
		full_name  TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id         SERIAL PRIMARY KEY,
		user1_id   INT NOT NULL REFERENCES users(id),
		user2_id   INT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT conversations_pair_key UNIQUE (user1_id, user2_id),
		CONSTRAINT conversations_pair_order CHECK (user1_id < user2_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              SERIAL PRIMARY KEY,
		conversation_id INT NOT NULL REFERENCES conversations(id),
		sender_id       INT NOT NULL REFERENCES users(id),
		content         TEXT NOT NULL DEFAULT '',
		attachment      TEXT,
		is_read         BOOLEAN NOT NULL DEFAULT false,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, id)`,
	`CREATE TABLE IF NOT EXISTS connection_requests (
		id          SERIAL PRIMARY KEY,
		sender_id   INT NOT NULL REFERENCES users(id),
		receiver_id INT NOT NULL REFERENCES users(id),
		status      TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected', 'blocked')),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		accepted_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS connection_requests_active_pair
		ON connection_requests (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id))
		WHERE status IN ('pending', 'accepted')`,
}

// Migrate creates the tables this service needs. It is safe to run repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
