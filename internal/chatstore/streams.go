package chatstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateStream records a stream id for a chat before generation starts,
// so a later consumer can discover the most recent stream.
func (s *Store) CreateStream(ctx context.Context, streamID, chatID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO streams (id, chat_id, created_at) VALUES ($1, $2, now())`,
		streamID, chatID)
	if err != nil {
		return fmt.Errorf("creating stream %s: %w", streamID, err)
	}
	s.logger.Debug("stream created", "stream_id", streamID, "chat_id", chatID)
	return nil
}

// StreamIDsByChat returns stream ids for a chat, newest first.
func (s *Store) StreamIDsByChat(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM streams WHERE chat_id = $1 ORDER BY created_at DESC`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("listing streams for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning stream id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
