package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/harroldalmussa/KonnektSocial-sub000/internal/apperrors"
	"github.com/harroldalmussa/KonnektSocial-sub000/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ResolveOrCreateChat returns the unique chat for the unordered pair
// {userA, userB}, creating it with both participant rows in one transaction
// when it does not exist yet. The bool result reports whether a chat was
// created. A concurrent creator losing the pair_key conflict falls back to
// reading the winner's row.
func (s *PostgresStore) ResolveOrCreateChat(ctx context.Context, userA, userB uuid.UUID) (*models.Chat, bool, error) {
	defer observe("resolve_or_create_chat")()

	if userA == userB {
		return nil, false, apperrors.New(apperrors.InvalidArgument, "cannot create a chat with yourself")
	}

	key := pairKey(userA, userB)

	// Fast path: the pair already has a chat.
	if chat, err := s.getChatByPairKey(ctx, key); err != nil {
		return nil, false, err
	} else if chat != nil {
		return chat, false, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	chat := &models.Chat{ID: uuid.New()}
	tag, err := tx.Exec(ctx, `
		INSERT INTO chats (id, pair_key)
		VALUES ($1, $2)
		ON CONFLICT (pair_key) DO NOTHING
	`, chat.ID, key)
	if err != nil {
		return nil, false, err
	}

	if tag.RowsAffected() == 0 {
		// Lost the race; the conflicting transaction has committed by now.
		existing, err := s.getChatByPairKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, apperrors.New(apperrors.Conflict, "concurrent chat creation, retry")
		}
		return existing, false, nil
	}

	for _, userID := range []uuid.UUID{userA, userB} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_participants (chat_id, user_id)
			VALUES ($1, $2)
		`, chat.ID, userID); err != nil {
			return nil, false, err
		}
	}

	if err := tx.QueryRow(ctx, `
		SELECT created_at FROM chats WHERE id = $1
	`, chat.ID).Scan(&chat.CreatedAt); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return chat, true, nil
}

func (s *PostgresStore) getChatByPairKey(ctx context.Context, key string) (*models.Chat, error) {
	chat := &models.Chat{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, created_at FROM chats WHERE pair_key = $1
	`, key).Scan(&chat.ID, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return chat, nil
}

// GetChat retrieves a chat by ID. Returns nil without error when no chat
// exists.
func (s *PostgresStore) GetChat(ctx context.Context, chatID uuid.UUID) (*models.Chat, error) {
	chat := &models.Chat{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, created_at FROM chats WHERE id = $1
	`, chatID).Scan(&chat.ID, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return chat, nil
}

// IsParticipant reports whether userID belongs to chatID.
func (s *PostgresStore) IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2
		)
	`, chatID, userID).Scan(&exists)
	return exists, err
}

// ParticipantIDs lists the user IDs of a chat's participants.
func (s *PostgresStore) ParticipantIDs(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM chat_participants WHERE chat_id = $1
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ChatIDsForUser lists every chat the user participates in.
func (s *PostgresStore) ChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chat_id FROM chat_participants WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteChat removes a chat with its messages and participant rows in one
// transaction.
func (s *PostgresStore) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chat_participants WHERE chat_id = $1`, chatID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.NotFound, "chat not found")
	}

	return tx.Commit(ctx)
}

// AppendMessage persists a message after checking sender membership. The
// stored timestamp is the server clock clamped to the chat's latest message,
// keeping per-chat timestamps non-decreasing.
func (s *PostgresStore) AppendMessage(ctx context.Context, chatID, senderID uuid.UUID, text string) (*models.Message, error) {
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

	err = s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, body, sent_at)
		VALUES ($1, $2, $3, $4, GREATEST(
			$5::bigint,
			COALESCE((SELECT MAX(sent_at) FROM messages WHERE chat_id = $2), 0)
		))
		RETURNING sent_at
	`, msg.ID, chatID, senderID, text, time.Now().UnixMilli()).Scan(&msg.Timestamp)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns all messages of a chat in ascending timestamp order,
// with the time-ordered message ID as tiebreak.
func (s *PostgresStore) ListMessages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	defer observe("list_messages")()

	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, sender_id, body, sent_at
		FROM messages WHERE chat_id = $1
		ORDER BY sent_at ASC, id ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var cid, sid uuid.UUID
		if err := rows.Scan(&msg.ID, &cid, &sid, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.ChatID = cid.String()
		msg.SenderID = sid.String()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountChats returns the total number of chats.
func (s *PostgresStore) CountChats(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

// CountMessages returns the total number of stored messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
