package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/apperr"
	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/chatstore"
)

// documentHandler serves artifact documents and their suggestions.
// Documents are versioned by insertion; every save appends a row.
type documentHandler struct {
	store  Store
	logger *slog.Logger
}

// documentJSON is the wire shape of one document version.
type documentJSON struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
}

func toDocumentJSON(d *chatstore.Document) documentJSON {
	return documentJSON{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,
		UserID:    d.UserID,
		Title:     d.Title,
		Kind:      string(d.Kind),
		Content:   d.Content,
	}
}

// documentPayload is the POST /api/document body. The id comes from
// the query string so save and prune address documents the same way.
type documentPayload struct {
	Title   string `json:"title" validate:"required,min=1,max=200"`
	Kind    string `json:"kind" validate:"required,oneof=text code sheet image"`
	Content string `json:"content"`
}

// suggestionJSON is the wire shape of a suggestion.
type suggestionJSON struct {
	ID            uuid.UUID `json:"id"`
	DocumentID    uuid.UUID `json:"documentId"`
	OriginalText  string    `json:"originalText"`
	SuggestedText string    `json:"suggestedText"`
	Description   string    `json:"description"`
	IsResolved    bool      `json:"isResolved"`
	CreatedAt     time.Time `json:"createdAt"`
}

// versions handles GET /api/document?id=. Returns every version,
// oldest first. Owner only.
func (h *documentHandler) versions(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "document", "no verified identity"))
		return
	}

	docID, err := uuidQuery(r, "id", "document")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	docs, err := h.store.DocumentVersions(r.Context(), docID)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "document", "loading versions", err))
		return
	}
	if len(docs) == 0 {
		writeError(w, h.logger, apperr.New(apperr.KindNotFound, "document", "document not found"))
		return
	}
	if docs[0].UserID != identity.UserID {
		writeError(w, h.logger, apperr.New(apperr.KindForbidden, "document", "you do not own this document"))
		return
	}

	out := make([]documentJSON, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentJSON(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// save handles POST /api/document?id=. Appends a new version; for an
// existing document the caller must own the prior versions.
func (h *documentHandler) save(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "document", "no verified identity"))
		return
	}

	docID, err := uuidQuery(r, "id", "document")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var payload documentPayload
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindBadRequest, "document", "invalid request body", err))
		return
	}
	if err := validate.Struct(&payload); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindBadRequest, "document", "invalid request body", err))
		return
	}

	prior, err := h.store.LatestDocument(r.Context(), docID)
	switch {
	case errors.Is(err, chatstore.ErrNotFound):
		// First version.
	case err != nil:
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "document", "loading document", err))
		return
	case prior.UserID != identity.UserID:
		writeError(w, h.logger, apperr.New(apperr.KindForbidden, "document", "you do not own this document"))
		return
	}

	doc := &chatstore.Document{
		ID:      docID,
		UserID:  identity.UserID,
		Title:   payload.Title,
		Kind:    chatstore.DocumentKind(payload.Kind),
		Content: payload.Content,
	}
	if err := h.store.SaveDocument(r.Context(), doc); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "document", "saving document", err))
		return
	}

	writeJSON(w, http.StatusOK, toDocumentJSON(doc))
}

// prune handles DELETE /api/document?id=&timestamp=. Owner only.
// Removes versions created strictly after the timestamp, restoring the
// document to an earlier state.
func (h *documentHandler) prune(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "document", "no verified identity"))
		return
	}

	docID, err := uuidQuery(r, "id", "document")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	after, err := timestampQuery(r, "timestamp", "document")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	doc, err := h.store.LatestDocument(r.Context(), docID)
	if errors.Is(err, chatstore.ErrNotFound) {
		writeError(w, h.logger, apperr.New(apperr.KindNotFound, "document", "document not found"))
		return
	}
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "document", "loading document", err))
		return
	}
	if doc.UserID != identity.UserID {
		writeError(w, h.logger, apperr.New(apperr.KindForbidden, "document", "you do not own this document"))
		return
	}

	if err := h.store.DeleteDocumentVersionsAfter(r.Context(), docID, after); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "document", "pruning versions", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// suggestions handles GET /api/suggestions?documentId=. Owner only.
func (h *documentHandler) suggestions(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "suggestions", "no verified identity"))
		return
	}

	docID, err := uuidQuery(r, "documentId", "suggestions")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	suggestions, err := h.store.SuggestionsByDocument(r.Context(), docID)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "suggestions", "listing suggestions", err))
		return
	}
	if len(suggestions) > 0 && suggestions[0].UserID != identity.UserID {
		writeError(w, h.logger, apperr.New(apperr.KindForbidden, "suggestions",
			fmt.Sprintf("suggestions for document %s belong to another user", docID)))
		return
	}

	out := make([]suggestionJSON, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionJSON{
			ID:            s.ID,
			DocumentID:    s.DocumentID,
			OriginalText:  s.OriginalText,
			SuggestedText: s.SuggestedText,
			Description:   s.Description,
			IsResolved:    s.IsResolved,
			CreatedAt:     s.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
