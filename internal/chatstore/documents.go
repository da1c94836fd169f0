package chatstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveDocument appends a new document version. The (id, created_at)
// pair is the primary key; saving an existing id creates the next
// version rather than overwriting.
func (s *Store) SaveDocument(ctx context.Context, doc *Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, created_at, user_id, title, kind, content)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.CreatedAt, doc.UserID, doc.Title, doc.Kind, doc.Content)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.ID, err)
	}

	s.logger.Debug("saved document version", "id", doc.ID, "kind", doc.Kind)
	return nil
}

// DocumentVersions returns all versions of a document, oldest first.
func (s *Store) DocumentVersions(ctx context.Context, id uuid.UUID) ([]*Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, user_id, title, kind, content
		 FROM documents WHERE id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("listing versions of document %s: %w", id, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.CreatedAt, &d.UserID, &d.Title, &d.Kind, &d.Content); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// LatestDocument returns the current version of a document: the row
// with the latest creation time sharing the id.
func (s *Store) LatestDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	var d Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, created_at, user_id, title, kind, content
		 FROM documents WHERE id = $1
		 ORDER BY created_at DESC LIMIT 1`, id).
		Scan(&d.ID, &d.CreatedAt, &d.UserID, &d.Title, &d.Kind, &d.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return &d, nil
}

// DeleteDocumentVersionsAfter prunes versions created after the given
// timestamp (version rollback for edit-and-regenerate).
func (s *Store) DeleteDocumentVersionsAfter(ctx context.Context, id uuid.UUID, after time.Time) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND created_at > $2`, id, after)
	if err != nil {
		return fmt.Errorf("pruning versions of document %s: %w", id, err)
	}
	return nil
}
