package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// fallback when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/konnekt.db". The special path
// ":memory:" opens a shared in-memory database.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	var dsn string
	if dbPath == ":memory:" {
		// A uniquely named shared-cache database: it survives pool
		// reconnects but is not shared with other store instances.
		dsn = fmt.Sprintf("file:mem-%s?mode=memory&cache=shared&_foreign_keys=on", ulid.Make())
	} else {
		if dbPath == "" {
			dbPath = "./data/konnekt.db"
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		dsn = dbPath + "?_journal_mode=WAL&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// A single connection keeps writes serialized and makes the shared
	// in-memory database behave like a file-backed one.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		pair_key TEXT NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id TEXT NOT NULL REFERENCES chats(id),
		user_id TEXT NOT NULL,
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (chat_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL REFERENCES chats(id),
		sender_id TEXT NOT NULL,
		body TEXT NOT NULL,
		sent_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_participants_user ON chat_participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_chat_sent ON messages(chat_id, sent_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ResolveOrCreateChat returns the unique chat for the unordered pair,
// creating chat and participant rows together when missing.
func (s *SQLiteStore) ResolveOrCreateChat(ctx context.Context, userA, userB uuid.UUID) (*models.Chat, bool, error) {
	defer observe("resolve_or_create_chat")()

	if userA == userB {
		return nil, false, apperrors.New(apperrors.InvalidArgument, "cannot create a chat with yourself")
	}

	key := pairKey(userA, userB)

	if chat, err := s.getChatByPairKey(ctx, key); err != nil {
		return nil, false, err
	} else if chat != nil {
		return chat, false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	id := uuid.New()
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO chats (id, pair_key) VALUES (?, ?)
	`, id.String(), key)
	if err != nil {
		return nil, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if affected == 0 {
		// Re-select through the transaction: the pool holds a single
		// connection and it is ours until commit.
		var existingID string
		existing := &models.Chat{}
		err := tx.QueryRowContext(ctx, `
			SELECT id, created_at FROM chats WHERE pair_key = ?
		`, key).Scan(&existingID, &existing.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, apperrors.New(apperrors.Conflict, "concurrent chat creation, retry")
		}
		if err != nil {
			return nil, false, err
		}
		if existing.ID, err = uuid.Parse(existingID); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	for _, userID := range []uuid.UUID{userA, userB} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_participants (chat_id, user_id) VALUES (?, ?)
		`, id.String(), userID.String()); err != nil {
			return nil, false, err
		}
	}

	chat := &models.Chat{ID: id}
	if err := tx.QueryRowContext(ctx, `
		SELECT created_at FROM chats WHERE id = ?
	`, id.String()).Scan(&chat.CreatedAt); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return chat, true, nil
}

func (s *SQLiteStore) getChatByPairKey(ctx context.Context, key string) (*models.Chat, error) {
	var idStr string
	chat := &models.Chat{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM chats WHERE pair_key = ?
	`, key).Scan(&idStr, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	chat.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// GetChat retrieves a chat by ID. Returns nil without error when no chat
// exists.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID uuid.UUID) (*models.Chat, error) {
	var idStr string
	chat := &models.Chat{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM chats WHERE id = ?
	`, chatID.String()).Scan(&idStr, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	chat.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// IsParticipant reports whether userID belongs to chatID.
func (s *SQLiteStore) IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat_participants WHERE chat_id = ? AND user_id = ?
		)
	`, chatID.String(), userID.String()).Scan(&exists)
	return exists, err
}

// ParticipantIDs lists the user IDs of a chat's participants.
func (s *SQLiteStore) ParticipantIDs(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM chat_participants WHERE chat_id = ?
	`, chatID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUUIDs(rows)
}

// ChatIDsForUser lists every chat the user participates in.
func (s *SQLiteStore) ChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id FROM chat_participants WHERE user_id = ?
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUUIDs(rows)
}

func scanUUIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteChat removes a chat with its messages and participant rows in one
// transaction.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_participants WHERE chat_id = ?`, chatID.String()); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID.String())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.New(apperrors.NotFound, "chat not found")
	}

	return tx.Commit()
}

// AppendMessage persists a message after checking sender membership, with a
// per-chat non-decreasing timestamp.
func (s *SQLiteStore) AppendMessage(ctx context.Context, chatID, senderID uuid.UUID, text string) (*models.Message, error) {
	defer observe("append_message")()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "message text is empty")
	}

	member, err := s.IsParticipant(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, apperrors.New(apperrors.Forbidden, "sender is not a participant of this chat")
	}

	msg := &models.Message{
		ID:       ulid.Make().String(),
		ChatID:   chatID.String(),
		SenderID: senderID.String(),
		Text:     text,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, body, sent_at)
		VALUES (?, ?, ?, ?, MAX(
			?,
			COALESCE((SELECT MAX(sent_at) FROM messages WHERE chat_id = ?), 0)
		))
		RETURNING sent_at
	`, msg.ID, msg.ChatID, msg.SenderID, text, time.Now().UnixMilli(), msg.ChatID).Scan(&msg.Timestamp)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns all messages of a chat in ascending timestamp order.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	defer observe("list_messages")()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, body, sent_at
		FROM messages WHERE chat_id = ?
		ORDER BY sent_at ASC, id ASC
	`, chatID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountChats returns the total number of chats.
func (s *SQLiteStore) CountChats(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of stored messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
