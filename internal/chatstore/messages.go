package chatstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveMessages appends messages in one transaction. Order within the
// slice is preserved through CreatedAt, which callers must set.
func (s *Store) SaveMessages(ctx context.Context, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, m := range messages {
		parts, err := json.Marshal(m.Parts)
		if err != nil {
			return fmt.Errorf("marshaling parts for message %s: %w", m.ID, err)
		}
		attachments, err := json.Marshal(m.Attachments)
		if err != nil {
			return fmt.Errorf("marshaling attachments for message %s: %w", m.ID, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO messages (id, chat_id, role, parts, attachments, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, m.ChatID, m.Role, parts, attachments, m.CreatedAt); err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing messages: %w", err)
	}

	s.logger.Debug("saved messages", "count", len(messages), "chat_id", messages[0].ChatID)
	return nil
}

// GetMessagesByChat loads all turns of a chat in creation order. This
// is the order replayed into the model's context window.
func (s *Store) GetMessagesByChat(ctx context.Context, chatID uuid.UUID) ([]*Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, role, parts, attachments, created_at
		 FROM messages WHERE chat_id = $1 ORDER BY created_at ASC`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("listing messages for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// GetMessage loads a single message by id.
func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, role, parts, attachments, created_at
		 FROM messages WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanMessage(rows)
}

// DeleteMessagesAfter removes a chat's turns created at or after the
// given timestamp. Used by edit-and-regenerate flows.
func (s *Store) DeleteMessagesAfter(ctx context.Context, chatID uuid.UUID, after time.Time) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM messages WHERE chat_id = $1 AND created_at >= $2`,
		chatID, after)
	if err != nil {
		return fmt.Errorf("deleting messages for chat %s after %s: %w", chatID, after, err)
	}
	return nil
}

// CountUserMessagesSince counts the user's own turns across all of
// their chats within the trailing window. Computed fresh per request:
// the value gates the daily quota.
func (s *Store) CountUserMessagesSince(ctx context.Context, userID string, window time.Duration) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages m
		 JOIN chats c ON c.id = m.chat_id
		 WHERE c.user_id = $1 AND m.role = 'user' AND m.created_at > $2`,
		userID, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages for user %s: %w", userID, err)
	}
	return count, nil
}

func scanMessage(rows pgx.Rows) (*Message, error) {
	var (
		m               Message
		parts, attached []byte
	)
	if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &parts, &attached, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning message row: %w", err)
	}
	if err := json.Unmarshal(parts, &m.Parts); err != nil {
		return nil, fmt.Errorf("unmarshaling parts for message %s: %w", m.ID, err)
	}
	if err := json.Unmarshal(attached, &m.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshaling attachments for message %s: %w", m.ID, err)
	}
	return &m, nil
}
