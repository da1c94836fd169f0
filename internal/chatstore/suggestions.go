package chatstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SaveSuggestions appends suggestion rows in one transaction.
func (s *Store) SaveSuggestions(ctx context.Context, suggestions []*Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, sg := range suggestions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO suggestions
			 (id, document_id, user_id, original_text, suggested_text, description, is_resolved, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sg.ID, sg.DocumentID, sg.UserID, sg.OriginalText, sg.SuggestedText,
			sg.Description, sg.IsResolved, sg.CreatedAt); err != nil {
			return fmt.Errorf("inserting suggestion %s: %w", sg.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing suggestions: %w", err)
	}
	return nil
}

// SuggestionsByDocument returns all suggestions targeting a document.
func (s *Store) SuggestionsByDocument(ctx context.Context, documentID uuid.UUID) ([]*Suggestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, document_id, user_id, original_text, suggested_text, description, is_resolved, created_at
		 FROM suggestions WHERE document_id = $1 ORDER BY created_at ASC`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions for document %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []*Suggestion
	for rows.Next() {
		var sg Suggestion
		if err := rows.Scan(&sg.ID, &sg.DocumentID, &sg.UserID, &sg.OriginalText,
			&sg.SuggestedText, &sg.Description, &sg.IsResolved, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning suggestion row: %w", err)
		}
		out = append(out, &sg)
	}
	return out, rows.Err()
}
