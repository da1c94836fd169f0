package chatstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// UpsertVote records a vote for a message. A repeat vote updates the
// existing row; the message_id primary key makes the upsert atomic
// under concurrent retries.
func (s *Store) UpsertVote(ctx context.Context, vote *Vote) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO votes (message_id, chat_id, is_upvoted, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (message_id)
		 DO UPDATE SET is_upvoted = EXCLUDED.is_upvoted, created_at = now()`,
		vote.MessageID, vote.ChatID, vote.IsUpvoted)
	if err != nil {
		return fmt.Errorf("voting on message %s: %w", vote.MessageID, err)
	}
	return nil
}

// VotesByChat returns all current votes in a chat.
func (s *Store) VotesByChat(ctx context.Context, chatID uuid.UUID) ([]*Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT message_id, chat_id, is_upvoted, created_at
		 FROM votes WHERE chat_id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing votes for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var votes []*Vote
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.MessageID, &v.ChatID, &v.IsUpvoted, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning vote row: %w", err)
		}
		votes = append(votes, &v)
	}
	return votes, rows.Err()
}
