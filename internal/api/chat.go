package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/apperr"
	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/chatstore"
	"github.com/parley-ai/parley/internal/entitlement"
	"github.com/parley-ai/parley/internal/orchestrator"
	"github.com/parley-ai/parley/internal/stream"
)

// quotaWindow is the trailing window for the daily message quota.
const quotaWindow = 24 * time.Hour

// maxChatBodyBytes bounds the POST /api/chat body. Attachments are
// uploaded separately, so the turn itself is small.
const maxChatBodyBytes = 1 << 20

// History pagination bounds.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// chatHandler serves the chat endpoints: turn submission, stream
// bookkeeping, deletion and history.
type chatHandler struct {
	store        Store
	orchestrator Runner
	entitlements *entitlement.Table
	logger       *slog.Logger
}

// chatJSON is the wire shape of a chat.
type chatJSON struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toChatJSON(c *chatstore.Chat) chatJSON {
	return chatJSON{
		ID:         c.ID,
		UserID:     c.UserID,
		Title:      c.Title,
		Visibility: string(c.Visibility),
		CreatedAt:  c.CreatedAt,
	}
}

// send handles POST /api/chat. Everything up to opening the SSE sink
// can fail with a plain JSON error; after the sink is open, failures
// degrade to a terminal error frame written by the orchestrator.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "chat", "no verified identity"))
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindBadRequest, "chat", "invalid request body", err))
		return
	}
	if err := validateChatRequest(&req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ent := h.entitlements.Lookup(identity.Tier)
	if !ent.AllowsModel(req.SelectedChatModel) {
		writeError(w, h.logger, apperr.New(apperr.KindForbidden, "chat",
			fmt.Sprintf("model %q is not available on your tier", req.SelectedChatModel)))
		return
	}

	// Best-effort quota read: a failed count must not block the turn,
	// so it degrades to zero.
	count, err := h.store.CountUserMessagesSince(r.Context(), identity.UserID, quotaWindow)
	if err != nil {
		h.logger.Warn("counting user messages, assuming zero", "error", err, "user", identity.UserID)
		count = 0
	}
	if count >= ent.MaxMessagesPerDay {
		writeError(w, h.logger, apperr.New(apperr.KindRateLimit, "chat",
			"daily message quota exceeded"))
		return
	}

	chatID := uuid.MustParse(req.ID) // validated
	chat, newChat, err := h.loadOrCreateChat(r, chatID, identity.UserID, req.SelectedVisibilityType)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	userMsg := buildUserMessage(chatID, &req.Message)
	if err := h.store.SaveMessages(r.Context(), []*chatstore.Message{userMsg}); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "chat", "saving user turn", err))
		return
	}

	sink, err := stream.NewSSESink(w)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "chat", "opening stream", err))
		return
	}

	// From here the response status is committed; Run reports its own
	// failures as a terminal error frame and logs them.
	_ = h.orchestrator.Run(r.Context(), orchestrator.Request{
		Chat:     chat,
		ModelID:  req.SelectedChatModel,
		Identity: identity,
		Sink:     sink,
		NewChat:  newChat,
		UserText: req.Message.Content,
	})
}

// loadOrCreateChat loads the chat, creating it with the caller as
// owner when absent. For an existing chat the caller must be the
// owner.
func (h *chatHandler) loadOrCreateChat(r *http.Request, chatID uuid.UUID, userID, visibility string) (*chatstore.Chat, bool, error) {
	chat, err := h.store.GetChat(r.Context(), chatID)
	switch {
	case errors.Is(err, chatstore.ErrNotFound):
		chat = &chatstore.Chat{
			ID:         chatID,
			UserID:     userID,
			Title:      "New chat",
			Visibility: chatstore.Visibility(visibility),
		}
		if err := h.store.CreateChat(r.Context(), chat); err != nil {
			return nil, false, apperr.Wrap(apperr.KindInternal, "chat", "creating chat", err)
		}
		return chat, true, nil
	case err != nil:
		return nil, false, apperr.Wrap(apperr.KindInternal, "chat", "loading chat", err)
	case chat.UserID != userID:
		return nil, false, apperr.New(apperr.KindForbidden, "chat", "you do not own this chat")
	}
	return chat, false, nil
}

// buildUserMessage converts the validated payload into a stored turn.
// CreatedAt is server-assigned so turn ordering follows one clock.
func buildUserMessage(chatID uuid.UUID, msg *messagePayload) *chatstore.Message {
	parts := make([]chatstore.Part, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		parts = append(parts, chatstore.Part{Type: chatstore.PartText, Text: p.Text})
	}
	var attachments []chatstore.Attachment
	for _, a := range msg.Attachments {
		attachments = append(attachments, chatstore.Attachment{
			URL:         a.URL,
			Name:        a.Name,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return &chatstore.Message{
		ID:          uuid.MustParse(msg.ID), // validated
		ChatID:      chatID,
		Role:        chatstore.RoleUser,
		Parts:       parts,
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
	}
}

// getStreams handles GET /api/chat?chatId=. It returns the stream
// bookkeeping state, newest first. Private chats require ownership;
// public chats are readable by any authenticated caller.
func (h *chatHandler) getStreams(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "chat", "no verified identity"))
		return
	}

	chatID, err := uuidQuery(r, "chatId", "chat")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	chat, err := loadChatForRead(r.Context(), h.store, chatID, identity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	streamIDs, err := h.store.StreamIDsByChat(r.Context(), chat.ID)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "chat", "loading streams", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chatId":    chat.ID,
		"streamIds": streamIDs,
	})
}

// loadChatForRead loads a chat and applies the visibility gate:
// private chats are owner-only, public chats are readable by any
// authenticated caller.
func loadChatForRead(ctx context.Context, store Store, chatID uuid.UUID, identity auth.Identity) (*chatstore.Chat, error) {
	chat, err := store.GetChat(ctx, chatID)
	if errors.Is(err, chatstore.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "chat", "chat not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "chat", "loading chat", err)
	}
	if chat.Visibility == chatstore.VisibilityPrivate && chat.UserID != identity.UserID {
		return nil, apperr.New(apperr.KindForbidden, "chat", "this chat is private")
	}
	return chat, nil
}

// loadOwnedChat loads a chat and requires the caller to be its owner.
func loadOwnedChat(ctx context.Context, store Store, chatID uuid.UUID, userID string) (*chatstore.Chat, error) {
	chat, err := store.GetChat(ctx, chatID)
	if errors.Is(err, chatstore.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "chat", "chat not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "chat", "loading chat", err)
	}
	if chat.UserID != userID {
		return nil, apperr.New(apperr.KindForbidden, "chat", "you do not own this chat")
	}
	return chat, nil
}

// deleteChat handles DELETE /api/chat?id=. Owner only; messages, votes
// and stream handles go with it via the schema cascade.
func (h *chatHandler) deleteChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "chat", "no verified identity"))
		return
	}

	chatID, err := uuidQuery(r, "id", "chat")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := loadOwnedChat(r.Context(), h.store, chatID, identity.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	deleted, err := h.store.DeleteChat(r.Context(), chatID)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "chat", "deleting chat", err))
		return
	}

	writeJSON(w, http.StatusOK, toChatJSON(deleted))
}

// visibilityPayload is the PATCH /api/chat/visibility body.
type visibilityPayload struct {
	ChatID     string `json:"chatId" validate:"required,uuid"`
	Visibility string `json:"visibility" validate:"required,oneof=public private"`
}

// updateVisibility handles PATCH /api/chat/visibility. Owner only;
// flips a chat between public and private after creation.
func (h *chatHandler) updateVisibility(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "chat", "no verified identity"))
		return
	}

	var payload visibilityPayload
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindBadRequest, "chat", "invalid request body", err))
		return
	}
	if err := validate.Struct(&payload); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindBadRequest, "chat", "invalid request body", err))
		return
	}

	chatID := uuid.MustParse(payload.ChatID) // validated
	chat, err := loadOwnedChat(r.Context(), h.store, chatID, identity.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	visibility := chatstore.Visibility(payload.Visibility)
	if err := h.store.UpdateChatVisibility(r.Context(), chatID, visibility); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "chat", "updating visibility", err))
		return
	}

	chat.Visibility = visibility
	writeJSON(w, http.StatusOK, toChatJSON(chat))
}

// deleteMessages handles DELETE /api/chat/messages?chatId=&timestamp=.
// Owner only. Deletes every turn at or after the timestamp; the chat
// itself stays, so the caller can edit and regenerate.
func (h *chatHandler) deleteMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "chat", "no verified identity"))
		return
	}

	chatID, err := uuidQuery(r, "chatId", "chat")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	after, err := timestampQuery(r, "timestamp", "chat")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := loadOwnedChat(r.Context(), h.store, chatID, identity.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.store.DeleteMessagesAfter(r.Context(), chatID, after); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "chat", "deleting messages", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// history handles GET /api/history?limit=&ending_before=. Chats are
// the caller's own, newest first; ending_before is the id of the last
// chat on the previous page.
func (h *chatHandler) history(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "history", "no verified identity"))
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, h.logger, apperr.New(apperr.KindBadRequest, "history",
				fmt.Sprintf("limit must be an integer between 1 and %d", maxHistoryLimit)))
			return
		}
		limit = n
	}

	var endingBefore *uuid.UUID
	if raw := r.URL.Query().Get("ending_before"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, h.logger, apperr.New(apperr.KindBadRequest, "history", "ending_before must be a UUID"))
			return
		}
		endingBefore = &id
	}

	// Over-fetch by one to learn whether another page exists.
	chats, err := h.store.ListChatsByUser(r.Context(), identity.UserID, limit+1, endingBefore)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "history", "listing chats", err))
		return
	}

	hasMore := len(chats) > limit
	if hasMore {
		chats = chats[:limit]
	}
	out := make([]chatJSON, 0, len(chats))
	for _, c := range chats {
		out = append(out, toChatJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chats":   out,
		"hasMore": hasMore,
	})
}

// uuidQuery parses a required UUID query parameter.
func uuidQuery(r *http.Request, name, surface string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, apperr.New(apperr.KindBadRequest, surface, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.KindBadRequest, surface, name+" must be a UUID")
	}
	return id, nil
}

// timestampQuery parses a required RFC 3339 query parameter.
func timestampQuery(r *http.Request, name, surface string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, apperr.New(apperr.KindBadRequest, surface, name+" is required")
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.New(apperr.KindBadRequest, surface, name+" must be an RFC 3339 timestamp")
	}
	return ts, nil
}
