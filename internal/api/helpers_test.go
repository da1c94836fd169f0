package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/blob"
	"github.com/parley-ai/parley/internal/chatstore"
	"github.com/parley-ai/parley/internal/log"
	"github.com/parley-ai/parley/internal/orchestrator"
	"github.com/parley-ai/parley/internal/stream"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	mu          sync.Mutex
	chats       map[uuid.UUID]*chatstore.Chat
	messages    map[uuid.UUID][]*chatstore.Message
	votes       map[uuid.UUID]*chatstore.Vote
	documents   map[uuid.UUID][]*chatstore.Document
	suggestions map[uuid.UUID][]*chatstore.Suggestion
	streams     map[uuid.UUID][]uuid.UUID

	userMessageCount int
	countErr         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:       make(map[uuid.UUID]*chatstore.Chat),
		messages:    make(map[uuid.UUID][]*chatstore.Message),
		votes:       make(map[uuid.UUID]*chatstore.Vote),
		documents:   make(map[uuid.UUID][]*chatstore.Document),
		suggestions: make(map[uuid.UUID][]*chatstore.Suggestion),
		streams:     make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeStore) CreateChat(_ context.Context, chat *chatstore.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *chat
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.chats[chat.ID] = &cp
	return nil
}

func (f *fakeStore) GetChat(_ context.Context, id uuid.UUID) (*chatstore.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return nil, chatstore.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) DeleteChat(_ context.Context, id uuid.UUID) (*chatstore.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return nil, chatstore.ErrNotFound
	}
	delete(f.chats, id)
	delete(f.messages, id)
	delete(f.streams, id)
	return c, nil
}

func (f *fakeStore) ListChatsByUser(_ context.Context, userID string, limit int, endingBefore *uuid.UUID) ([]*chatstore.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*chatstore.Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			all = append(all, c)
		}
	}
	// Newest first.
	slices.SortFunc(all, func(a, b *chatstore.Chat) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	start := 0
	if endingBefore != nil {
		for i, c := range all {
			if c.ID == *endingBefore {
				start = i + 1
				break
			}
		}
	}
	all = all[start:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeStore) UpdateChatVisibility(_ context.Context, id uuid.UUID, visibility chatstore.Visibility) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return chatstore.ErrNotFound
	}
	c.Visibility = visibility
	return nil
}

func (f *fakeStore) SaveMessages(_ context.Context, messages []*chatstore.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range messages {
		cp := *m
		f.messages[m.ChatID] = append(f.messages[m.ChatID], &cp)
	}
	return nil
}

func (f *fakeStore) GetMessage(_ context.Context, id uuid.UUID) (*chatstore.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msgs := range f.messages {
		for _, m := range msgs {
			if m.ID == id {
				cp := *m
				return &cp, nil
			}
		}
	}
	return nil, chatstore.ErrNotFound
}

func (f *fakeStore) DeleteMessagesAfter(_ context.Context, chatID uuid.UUID, after time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*chatstore.Message
	for _, m := range f.messages[chatID] {
		if m.CreatedAt.Before(after) {
			kept = append(kept, m)
		}
	}
	f.messages[chatID] = kept
	return nil
}

func (f *fakeStore) CountUserMessagesSince(_ context.Context, _ string, _ time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.userMessageCount, nil
}

func (f *fakeStore) UpsertVote(_ context.Context, vote *chatstore.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *vote
	cp.CreatedAt = time.Now()
	f.votes[vote.MessageID] = &cp
	return nil
}

func (f *fakeStore) VotesByChat(_ context.Context, chatID uuid.UUID) ([]*chatstore.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*chatstore.Vote
	for _, v := range f.votes {
		if v.ChatID == chatID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveDocument(_ context.Context, doc *chatstore.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.documents[doc.ID] = append(f.documents[doc.ID], &cp)
	return nil
}

func (f *fakeStore) DocumentVersions(_ context.Context, id uuid.UUID) ([]*chatstore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.documents[id]), nil
}

func (f *fakeStore) LatestDocument(_ context.Context, id uuid.UUID) (*chatstore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.documents[id]
	if len(versions) == 0 {
		return nil, chatstore.ErrNotFound
	}
	cp := *versions[len(versions)-1]
	return &cp, nil
}

func (f *fakeStore) DeleteDocumentVersionsAfter(_ context.Context, id uuid.UUID, after time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*chatstore.Document
	for _, d := range f.documents[id] {
		if !d.CreatedAt.After(after) {
			kept = append(kept, d)
		}
	}
	f.documents[id] = kept
	return nil
}

func (f *fakeStore) SuggestionsByDocument(_ context.Context, documentID uuid.UUID) ([]*chatstore.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.suggestions[documentID]), nil
}

func (f *fakeStore) StreamIDsByChat(_ context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.streams[chatID]), nil
}

// fakeRunner records orchestrator requests and writes one canned frame
// so handler tests can assert the SSE wiring end to end.
type fakeRunner struct {
	mu       sync.Mutex
	requests []orchestrator.Request
	err      error
}

func (f *fakeRunner) Run(_ context.Context, req orchestrator.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return f.err
	}
	return req.Sink.Write(stream.TextDelta("Hello!"))
}

func (f *fakeRunner) got() []orchestrator.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

// testEnv bundles a server and its collaborators for handler tests.
type testEnv struct {
	store  *fakeStore
	runner *fakeRunner
	blob   *blob.MemoryStore
	tokens *auth.MemoryTokenStore
	server *httptest.Server
}

const (
	testToken     = "test-token"
	testUserID    = "user-1"
	otherToken    = "other-token"
	otherUserID   = "user-2"
	testMaxUpload = 1 << 20
	testRateBurst = 1000
)

// newTestEnv starts an httptest server around a fully wired API
// server with in-memory collaborators. Two identities are issued so
// ownership checks can be exercised.
func newTestEnv(t testing.TB) *testEnv {
	t.Helper()

	store := newFakeStore()
	runner := &fakeRunner{}
	blobStore := blob.NewMemoryStore()
	tokens := auth.NewMemoryTokenStore()
	tokens.Issue(testToken, auth.Identity{UserID: testUserID, Tier: "regular"}, time.Hour)
	tokens.Issue(otherToken, auth.Identity{UserID: otherUserID, Tier: "regular"}, time.Hour)

	srv, err := NewServer(ServerConfig{
		Logger:         log.NewNop(),
		Store:          store,
		Orchestrator:   runner,
		Blob:           blobStore,
		Tokens:         tokens,
		MaxUploadBytes: testMaxUpload,
		RateBurst:      testRateBurst,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{store: store, runner: runner, blob: blobStore, tokens: tokens, server: ts}
}

// do issues a request with the given bearer token ("" sends none).
func (e *testEnv) do(t testing.TB, method, path, token string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	return resp
}

// seedChat inserts a chat owned by userID and returns it.
func (e *testEnv) seedChat(t testing.TB, userID string, visibility chatstore.Visibility) *chatstore.Chat {
	t.Helper()
	chat := &chatstore.Chat{
		ID:         uuid.New(),
		UserID:     userID,
		Title:      "Seeded chat",
		Visibility: visibility,
		CreatedAt:  time.Now(),
	}
	if err := e.store.CreateChat(context.Background(), chat); err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	return chat
}

// seedMessage inserts a user message into the chat and returns it.
func (e *testEnv) seedMessage(t testing.TB, chatID uuid.UUID) *chatstore.Message {
	t.Helper()
	msg := &chatstore.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		Role:      chatstore.RoleUser,
		Parts:     []chatstore.Part{{Type: chatstore.PartText, Text: "seeded"}},
		CreatedAt: time.Now(),
	}
	if err := e.store.SaveMessages(context.Background(), []*chatstore.Message{msg}); err != nil {
		t.Fatalf("SaveMessages() error = %v", err)
	}
	return msg
}

// decodeBody decodes a JSON response body into v.
func decodeBody(t testing.TB, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}
