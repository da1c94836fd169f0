package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/chatstore"
	"github.com/parley-ai/parley/internal/model"
)

// chatBody builds a valid POST /api/chat body as a mutable map so
// table tests can break individual fields.
func chatBody(chatID, msgID uuid.UUID, content string) map[string]any {
	return map[string]any{
		"id": chatID.String(),
		"message": map[string]any{
			"id":        msgID.String(),
			"createdAt": time.Now().Format(time.RFC3339),
			"role":      "user",
			"content":   content,
			"parts": []map[string]any{
				{"type": "text", "text": content},
			},
		},
		"selectedChatModel":      model.DefaultChatModel,
		"selectedVisibilityType": "private",
	}
}

func marshalBody(t *testing.T, body map[string]any) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	return bytes.NewReader(raw)
}

func TestSendStreamsReply(t *testing.T) {
	env := newTestEnv(t)
	chatID, msgID := uuid.New(), uuid.New()

	resp := env.do(t, http.MethodPost, "/api/chat", testToken,
		marshalBody(t, chatBody(chatID, msgID, "Hello model")))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.Contains(string(raw), "event: text-delta") {
		t.Errorf("body missing text-delta event:\n%s", raw)
	}
	if !strings.Contains(string(raw), "Hello!") {
		t.Errorf("body missing streamed text:\n%s", raw)
	}

	// The chat was created with the caller as owner.
	chat, ok := env.store.chats[chatID]
	if !ok {
		t.Fatal("chat was not created")
	}
	if chat.UserID != testUserID {
		t.Errorf("chat.UserID = %q, want %q", chat.UserID, testUserID)
	}

	// The user turn was persisted before generation.
	msgs := env.store.messages[chatID]
	if len(msgs) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(msgs))
	}
	if msgs[0].Role != chatstore.RoleUser || msgs[0].Parts[0].Text != "Hello model" {
		t.Errorf("unexpected saved message: %+v", msgs[0])
	}

	reqs := env.runner.got()
	if len(reqs) != 1 {
		t.Fatalf("orchestrator ran %d times, want 1", len(reqs))
	}
	if !reqs[0].NewChat {
		t.Error("NewChat = false, want true for a first turn")
	}
	if reqs[0].ModelID != model.DefaultChatModel {
		t.Errorf("ModelID = %q, want %q", reqs[0].ModelID, model.DefaultChatModel)
	}
	if reqs[0].UserText != "Hello model" {
		t.Errorf("UserText = %q, want %q", reqs[0].UserText, "Hello model")
	}
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(body map[string]any)
	}{
		{
			name:   "malformed chat id",
			mutate: func(b map[string]any) { b["id"] = "not-a-uuid" },
		},
		{
			name: "empty content",
			mutate: func(b map[string]any) {
				b["message"].(map[string]any)["content"] = ""
			},
		},
		{
			name: "content over limit",
			mutate: func(b map[string]any) {
				b["message"].(map[string]any)["content"] = strings.Repeat("x", 2001)
			},
		},
		{
			name: "assistant role",
			mutate: func(b map[string]any) {
				b["message"].(map[string]any)["role"] = "assistant"
			},
		},
		{
			name:   "unsupported model",
			mutate: func(b map[string]any) { b["selectedChatModel"] = "gpt-4o" },
		},
		{
			name:   "unknown visibility",
			mutate: func(b map[string]any) { b["selectedVisibilityType"] = "unlisted" },
		},
		{
			name: "executable attachment",
			mutate: func(b map[string]any) {
				b["message"].(map[string]any)["attachments"] = []map[string]any{{
					"url":         "/api/files/" + uuid.NewString(),
					"name":        "payload.exe",
					"contentType": "application/x-msdownload",
				}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			body := chatBody(uuid.New(), uuid.New(), "hello")
			tt.mutate(body)

			resp := env.do(t, http.MethodPost, "/api/chat", testToken, marshalBody(t, body))
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
			if got := len(env.runner.got()); got != 0 {
				t.Errorf("orchestrator ran %d times, want 0", got)
			}
		})
	}
}

func TestSendUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/chat", "",
		marshalBody(t, chatBody(uuid.New(), uuid.New(), "hi")))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestSendQuotaBoundary(t *testing.T) {
	// Regular tier cap is 50/day: the 50th message passes, the 51st is
	// rejected.
	tests := []struct {
		name       string
		priorCount int
		wantStatus int
	}{
		{name: "under cap", priorCount: 49, wantStatus: http.StatusOK},
		{name: "at cap", priorCount: 50, wantStatus: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.store.userMessageCount = tt.priorCount

			resp := env.do(t, http.MethodPost, "/api/chat", testToken,
				marshalBody(t, chatBody(uuid.New(), uuid.New(), "hi")))
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusTooManyRequests {
				var body errorBody
				decodeBody(t, resp, &body)
				if body.Code != "rate_limit:chat" {
					t.Errorf("error code = %q, want rate_limit:chat", body.Code)
				}
			}
		})
	}
}

func TestSendQuotaCountFailureDegradesToZero(t *testing.T) {
	env := newTestEnv(t)
	env.store.countErr = io.ErrUnexpectedEOF

	resp := env.do(t, http.MethodPost, "/api/chat", testToken,
		marshalBody(t, chatBody(uuid.New(), uuid.New(), "hi")))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d (count failure must not block)", resp.StatusCode, http.StatusOK)
	}
}

func TestSendForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	chat := env.seedChat(t, otherUserID, chatstore.VisibilityPrivate)

	resp := env.do(t, http.MethodPost, "/api/chat", testToken,
		marshalBody(t, chatBody(chat.ID, uuid.New(), "hi")))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	if got := len(env.store.messages[chat.ID]); got != 0 {
		t.Errorf("saved %d messages into a foreign chat, want 0", got)
	}
}

func TestGetStreamsVisibility(t *testing.T) {
	tests := []struct {
		name       string
		owner      string
		visibility chatstore.Visibility
		token      string
		wantStatus int
	}{
		{name: "own private chat", owner: testUserID, visibility: chatstore.VisibilityPrivate, token: testToken, wantStatus: http.StatusOK},
		{name: "foreign private chat", owner: otherUserID, visibility: chatstore.VisibilityPrivate, token: testToken, wantStatus: http.StatusForbidden},
		{name: "foreign public chat", owner: otherUserID, visibility: chatstore.VisibilityPublic, token: testToken, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			chat := env.seedChat(t, tt.owner, tt.visibility)
			streamID := uuid.New()
			env.store.streams[chat.ID] = []uuid.UUID{streamID}

			resp := env.do(t, http.MethodGet, "/api/chat?chatId="+chat.ID.String(), tt.token, nil)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				ChatID    uuid.UUID   `json:"chatId"`
				StreamIDs []uuid.UUID `json:"streamIds"`
			}
			decodeBody(t, resp, &body)
			if len(body.StreamIDs) != 1 || body.StreamIDs[0] != streamID {
				t.Errorf("streamIds = %v, want [%s]", body.StreamIDs, streamID)
			}
		})
	}
}

func TestGetStreamsUnknownChat(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/chat?chatId="+uuid.NewString(), testToken, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestDeleteChat(t *testing.T) {
	env := newTestEnv(t)
	chat := env.seedChat(t, testUserID, chatstore.VisibilityPrivate)

	resp := env.do(t, http.MethodDelete, "/api/chat?id="+chat.ID.String(), testToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var deleted chatJSON
	decodeBody(t, resp, &deleted)
	if deleted.ID != chat.ID {
		t.Errorf("deleted.ID = %s, want %s", deleted.ID, chat.ID)
	}
	if _, ok := env.store.chats[chat.ID]; ok {
		t.Error("chat still present after delete")
	}
}

func TestDeleteChatForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	chat := env.seedChat(t, otherUserID, chatstore.VisibilityPublic)

	resp := env.do(t, http.MethodDelete, "/api/chat?id="+chat.ID.String(), testToken, nil)
	defer resp.Body.Close()

	// Public visibility grants reads, never deletion.
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	if _, ok := env.store.chats[chat.ID]; !ok {
		t.Error("chat deleted by non-owner")
	}
}

func TestUpdateVisibility(t *testing.T) {
	env := newTestEnv(t)
	chat := env.seedChat(t, testUserID, chatstore.VisibilityPrivate)

	body := `{"chatId":"` + chat.ID.String() + `","visibility":"public"}`
	resp := env.do(t, http.MethodPatch, "/api/chat/visibility", testToken, strings.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var updated chatJSON
	decodeBody(t, resp, &updated)
	if updated.Visibility != "public" {
		t.Errorf("Visibility = %q, want public", updated.Visibility)
	}
	if got := env.store.chats[chat.ID].Visibility; got != chatstore.VisibilityPublic {
		t.Errorf("stored visibility = %q, want public", got)
	}

	// A formerly private chat is now readable by other callers.
	resp = env.do(t, http.MethodGet, "/api/vote?chatId="+chat.ID.String(), otherToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("read after publish: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestUpdateVisibilityForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	chat := env.seedChat(t, otherUserID, chatstore.VisibilityPublic)

	body := `{"chatId":"` + chat.ID.String() + `","visibility":"private"}`
	resp := env.do(t, http.MethodPatch, "/api/chat/visibility", testToken, strings.NewReader(body))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	if got := env.store.chats[chat.ID].Visibility; got != chatstore.VisibilityPublic {
		t.Errorf("stored visibility = %q, want unchanged public", got)
	}
}

func TestUpdateVisibilityValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{`},
		{name: "bad chat id", body: `{"chatId":"nope","visibility":"public"}`},
		{name: "bad visibility", body: `{"chatId":"` + uuid.NewString() + `","visibility":"unlisted"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			resp := env.do(t, http.MethodPatch, "/api/chat/visibility", testToken, strings.NewReader(tt.body))
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestDeleteMessagesAfterTimestamp(t *testing.T) {
	env := newTestEnv(t)
	chat := env.seedChat(t, testUserID, chatstore.VisibilityPrivate)

	cutoff := time.Now()
	env.store.messages[chat.ID] = []*chatstore.Message{
		{ID: uuid.New(), ChatID: chat.ID, Role: chatstore.RoleUser, CreatedAt: cutoff.Add(-time.Minute)},
		{ID: uuid.New(), ChatID: chat.ID, Role: chatstore.RoleAssistant, CreatedAt: cutoff.Add(time.Minute)},
	}

	path := "/api/chat/messages?chatId=" + chat.ID.String() +
		"&timestamp=" + cutoff.UTC().Format(time.RFC3339)
	resp := env.do(t, http.MethodDelete, path, testToken, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := len(env.store.messages[chat.ID]); got != 1 {
		t.Fatalf("messages left = %d, want 1", got)
	}
	if env.store.messages[chat.ID][0].Role != chatstore.RoleUser {
		t.Error("kept the wrong message")
	}
}

func TestDeleteMessagesBadTimestamp(t *testing.T) {
	env := newTestEnv(t)
	chat := env.seedChat(t, testUserID, chatstore.VisibilityPrivate)

	path := "/api/chat/messages?chatId=" + chat.ID.String() + "&timestamp=yesterday"
	resp := env.do(t, http.MethodDelete, path, testToken, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHistoryPagination(t *testing.T) {
	env := newTestEnv(t)

	// Five chats with distinct creation times, newest last.
	base := time.Now().Add(-time.Hour)
	var ids []uuid.UUID
	for i := range 5 {
		chat := &chatstore.Chat{
			ID:         uuid.New(),
			UserID:     testUserID,
			Title:      "Chat",
			Visibility: chatstore.VisibilityPrivate,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		env.store.chats[chat.ID] = chat
		ids = append(ids, chat.ID)
	}
	// A foreign chat that must never appear.
	env.seedChat(t, otherUserID, chatstore.VisibilityPublic)

	type page struct {
		Chats   []chatJSON `json:"chats"`
		HasMore bool       `json:"hasMore"`
	}

	resp := env.do(t, http.MethodGet, "/api/history?limit=2", testToken, nil)
	var first page
	decodeBody(t, resp, &first)
	if len(first.Chats) != 2 || !first.HasMore {
		t.Fatalf("first page = %d chats, hasMore=%v; want 2, true", len(first.Chats), first.HasMore)
	}
	if first.Chats[0].ID != ids[4] || first.Chats[1].ID != ids[3] {
		t.Errorf("first page not newest-first: %v", first.Chats)
	}

	cursor := first.Chats[1].ID
	resp = env.do(t, http.MethodGet, "/api/history?limit=2&ending_before="+cursor.String(), testToken, nil)
	var second page
	decodeBody(t, resp, &second)
	if len(second.Chats) != 2 || !second.HasMore {
		t.Fatalf("second page = %d chats, hasMore=%v; want 2, true", len(second.Chats), second.HasMore)
	}
	if second.Chats[0].ID != ids[2] || second.Chats[1].ID != ids[1] {
		t.Errorf("second page out of order: %v", second.Chats)
	}

	cursor = second.Chats[1].ID
	resp = env.do(t, http.MethodGet, "/api/history?limit=2&ending_before="+cursor.String(), testToken, nil)
	var last page
	decodeBody(t, resp, &last)
	if len(last.Chats) != 1 || last.HasMore {
		t.Fatalf("last page = %d chats, hasMore=%v; want 1, false", len(last.Chats), last.HasMore)
	}
}

func TestHistoryBadLimit(t *testing.T) {
	env := newTestEnv(t)
	for _, raw := range []string{"0", "-1", "101", "many"} {
		resp := env.do(t, http.MethodGet, "/api/history?limit="+raw, testToken, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want %d", raw, resp.StatusCode, http.StatusBadRequest)
		}
	}
}
