package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// schema is the PostgreSQL schema, applied idempotently at startup.
const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id UUID PRIMARY KEY,
	pair_key TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chat_participants (
	chat_id UUID NOT NULL REFERENCES chats(id),
	user_id UUID NOT NULL,
	joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (chat_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	chat_id UUID NOT NULL REFERENCES chats(id),
	sender_id UUID NOT NULL,
	body TEXT NOT NULL,
	sent_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_participants_user ON chat_participants(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_chat_sent ON messages(chat_id, sent_at);
`

// RunMigrations applies the schema to the PostgreSQL database.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, schema)
	return err
}
