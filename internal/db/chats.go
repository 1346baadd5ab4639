package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/themobileprof/telecare-be/internal/chat"
)

const chatColumns = `id, participant_a, participant_b, is_active,
	last_message_content, last_message_sender, last_message_at, created_at, updated_at`

func scanChat(row rowScanner) (*chat.Chat, error) {
	c := &chat.Chat{Participants: make([]string, 2)}
	var content, sender sql.NullString
	var at sql.NullTime

	err := row.Scan(
		&c.ID, &c.Participants[0], &c.Participants[1], &c.IsActive,
		&content, &sender, &at, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if at.Valid {
		c.LastMessage = &chat.LastMessage{
			Content:   content.String,
			SenderID:  sender.String,
			Timestamp: at.Time,
		}
	}
	return c, nil
}

// GetOrCreateChat returns the chat for a pair of users, inserting it if absent.
// The pair is stored ordered so (a, b) and (b, a) hit the same row.
func (db *DB) GetOrCreateChat(ctx context.Context, userA, userB string) (*chat.Chat, error) {
	pair := []string{userA, userB}
	sort.Strings(pair)

	query := `
		INSERT INTO chats (participant_a, participant_b)
		VALUES ($1, $2)
		ON CONFLICT (participant_a, participant_b)
		DO UPDATE SET is_active = TRUE
		RETURNING ` + chatColumns

	c, err := scanChat(db.QueryRowContext(ctx, query, pair[0], pair[1]))
	if err != nil {
		if isForeignKeyError(err) {
			return nil, chat.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to get or create chat: %w", err)
	}
	return c, nil
}

// GetChat retrieves a chat by ID
func (db *DB) GetChat(ctx context.Context, chatID string) (*chat.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`

	c, err := scanChat(db.QueryRowContext(ctx, query, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return c, nil
}

// ListChats returns a user's active chats, most recent message first
func (db *DB) ListChats(ctx context.Context, userID string) ([]chat.Chat, error) {
	query := `SELECT ` + chatColumns + `
		FROM chats
		WHERE (participant_a = $1 OR participant_b = $1) AND is_active = TRUE
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]chat.Chat, 0)
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// ListMessages returns a chat's messages oldest first, each with its read
// receipts in the order they were read
func (db *DB) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	query := `
		SELECT m.id, m.chat_id, m.sender_id, m.content, m.type, m.file_url, m.created_at,
		       COALESCE(
		           json_agg(json_build_object('userId', r.user_id, 'readAt', r.read_at) ORDER BY r.read_at)
		               FILTER (WHERE r.user_id IS NOT NULL),
		           '[]'
		       )
		FROM chat_messages m
		LEFT JOIN message_reads r ON r.message_id = m.id
		WHERE m.chat_id = $1
		GROUP BY m.id
		ORDER BY m.created_at ASC
	`

	rows, err := db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var m chat.Message
		var receipts []byte
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.Type, &m.FileURL, &m.CreatedAt,
			&receipts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if err := json.Unmarshal(receipts, &m.ReadBy); err != nil {
			return nil, fmt.Errorf("failed to decode read receipts: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkRead records userID as a reader of every message it did not send
func (db *DB) MarkRead(ctx context.Context, chatID, userID string) error {
	query := `
		INSERT INTO message_reads (message_id, user_id)
		SELECT id, $2 FROM chat_messages
		WHERE chat_id = $1 AND sender_id <> $2
		ON CONFLICT (message_id, user_id) DO NOTHING
	`

	if _, err := db.ExecContext(ctx, query, chatID, userID); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// AddMessage inserts a message and updates the chat preview in one transaction
func (db *DB) AddMessage(ctx context.Context, chatID, senderID, content string, typ chat.MessageType) (*chat.Message, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	msg := &chat.Message{ChatID: chatID, SenderID: senderID, Content: content, Type: typ, ReadBy: []chat.ReadReceipt{}}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO chat_messages (chat_id, sender_id, content, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, chatID, senderID, content, typ).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		if isForeignKeyError(err) {
			return nil, chat.ErrNotFound
		}
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE chats
		SET last_message_content = $2, last_message_sender = $3, last_message_at = $4, updated_at = NOW()
		WHERE id = $1
	`, chatID, content, senderID, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to update chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}
