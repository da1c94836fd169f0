package chatstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateChat inserts a new chat owned by chat.UserID.
func (s *Store) CreateChat(ctx context.Context, chat *Chat) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chats (id, user_id, title, visibility, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		chat.ID, chat.UserID, chat.Title, chat.Visibility, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating chat %s: %w", chat.ID, err)
	}

	s.logger.Debug("created chat", "id", chat.ID, "user_id", chat.UserID)
	return nil
}

// GetChat loads a chat by id. Returns ErrNotFound if absent.
func (s *Store) GetChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, visibility, created_at FROM chats WHERE id = $1`,
		id).Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting chat %s: %w", id, err)
	}
	return &c, nil
}

// DeleteChat removes a chat and, via schema cascade, its messages,
// votes and stream handles. Returns the deleted chat summary.
func (s *Store) DeleteChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx,
		`DELETE FROM chats WHERE id = $1
		 RETURNING id, user_id, title, visibility, created_at`,
		id).Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("deleting chat %s: %w", id, err)
	}

	s.logger.Debug("deleted chat", "id", id)
	return &c, nil
}

// ListChatsByUser returns the user's chats newest-first. When
// endingBefore is non-nil, only chats created before that chat's
// creation time are returned (cursor pagination).
func (s *Store) ListChatsByUser(ctx context.Context, userID string, limit int, endingBefore *uuid.UUID) ([]*Chat, error) {
	cursor := time.Time{}
	if endingBefore != nil {
		ref, err := s.GetChat(ctx, *endingBefore)
		if err != nil {
			return nil, fmt.Errorf("resolving pagination cursor: %w", err)
		}
		cursor = ref.CreatedAt
	}

	var rows pgx.Rows
	var err error
	if cursor.IsZero() {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, title, visibility, created_at FROM chats
			 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
			userID, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, title, visibility, created_at FROM chats
			 WHERE user_id = $1 AND created_at < $2
			 ORDER BY created_at DESC LIMIT $3`,
			userID, cursor, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing chats for user %s: %w", userID, err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat row: %w", err)
		}
		chats = append(chats, &c)
	}
	return chats, rows.Err()
}

// UpdateChatVisibility flips a chat between public and private.
func (s *Store) UpdateChatVisibility(ctx context.Context, id uuid.UUID, visibility Visibility) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET visibility = $2 WHERE id = $1`, id, visibility)
	if err != nil {
		return fmt.Errorf("updating chat %s visibility: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateChatTitle sets the chat title (used once, after async title
// generation for a freshly created chat).
func (s *Store) UpdateChatTitle(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET title = $2 WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("updating chat %s title: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
