package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/apperr"
	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/chatstore"
)

// voteHandler serves message voting: listing a chat's votes and
// upserting the caller's vote on a message.
type voteHandler struct {
	store  Store
	logger *slog.Logger
}

// voteJSON is the wire shape of a vote.
type voteJSON struct {
	MessageID uuid.UUID `json:"messageId"`
	ChatID    uuid.UUID `json:"chatId"`
	IsUpvoted bool      `json:"isUpvoted"`
	CreatedAt time.Time `json:"createdAt"`
}

// votePayload is the PATCH /api/vote body.
type votePayload struct {
	ChatID    string `json:"chatId" validate:"required,uuid"`
	MessageID string `json:"messageId" validate:"required,uuid"`
	Type      string `json:"type" validate:"required,oneof=up down"`
}

// list handles GET /api/vote?chatId=. Reads follow the chat's
// visibility gate, same as the stream bookkeeping endpoint.
func (h *voteHandler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "vote", "no verified identity"))
		return
	}

	chatID, err := uuidQuery(r, "chatId", "vote")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	chat, err := loadChatForRead(r.Context(), h.store, chatID, identity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	votes, err := h.store.VotesByChat(r.Context(), chat.ID)
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "vote", "listing votes", err))
		return
	}

	out := make([]voteJSON, 0, len(votes))
	for _, v := range votes {
		out = append(out, voteJSON{
			MessageID: v.MessageID,
			ChatID:    v.ChatID,
			IsUpvoted: v.IsUpvoted,
			CreatedAt: v.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// upsert handles PATCH /api/vote. Owner only; re-voting a message
// replaces the previous vote.
func (h *voteHandler) upsert(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperr.New(apperr.KindUnauthorized, "vote", "no verified identity"))
		return
	}

	var payload votePayload
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindBadRequest, "vote", "invalid request body", err))
		return
	}
	if err := validate.Struct(&payload); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindBadRequest, "vote", "invalid request body", err))
		return
	}

	chatID := uuid.MustParse(payload.ChatID) // validated
	if _, err := loadOwnedChat(r.Context(), h.store, chatID, identity.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	messageID := uuid.MustParse(payload.MessageID) // validated
	msg, err := h.store.GetMessage(r.Context(), messageID)
	if errors.Is(err, chatstore.ErrNotFound) {
		writeError(w, h.logger, apperr.New(apperr.KindNotFound, "vote", "message not found"))
		return
	}
	if err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "vote", "loading message", err))
		return
	}
	if msg.ChatID != chatID {
		writeError(w, h.logger, apperr.New(apperr.KindBadRequest, "vote", "message does not belong to this chat"))
		return
	}

	vote := &chatstore.Vote{
		MessageID: messageID,
		ChatID:    chatID,
		IsUpvoted: payload.Type == "up",
	}
	if err := h.store.UpsertVote(r.Context(), vote); err != nil {
		writeError(w, h.logger, apperr.Wrap(apperr.KindInternal, "vote", "saving vote", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
