package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"extra whitespace", "Bearer   abc123", "abc123"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"scheme only", "Bearer ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := BearerToken(r); got != tt.want {
				t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	id := Identity{UserID: "u-1", Tier: "premium"}
	ctx := ContextWithIdentity(context.Background(), id)

	got, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("IdentityFromContext returned false for context with identity")
	}
	if got != id {
		t.Errorf("IdentityFromContext = %+v, want %+v", got, id)
	}

	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("IdentityFromContext returned true for empty context")
	}
}

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	id := Identity{UserID: "u-1", Tier: "regular"}
	store.Issue("tok", id, time.Minute)

	got, err := store.Resolve(ctx, "tok")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != id {
		t.Errorf("Resolve = %+v, want %+v", got, id)
	}

	if _, err := store.Resolve(ctx, "unknown"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve(unknown) = %v, want ErrInvalidToken", err)
	}

	store.Revoke("tok")
	if _, err := store.Resolve(ctx, "tok"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve after revoke = %v, want ErrInvalidToken", err)
	}
}

func TestMemoryTokenStoreExpiry(t *testing.T) {
	store := NewMemoryTokenStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	store.Issue("tok", Identity{UserID: "u-1", Tier: "regular"}, time.Minute)

	if _, err := store.Resolve(context.Background(), "tok"); err != nil {
		t.Fatalf("Resolve before expiry: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := store.Resolve(context.Background(), "tok"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve after expiry = %v, want ErrInvalidToken", err)
	}
}
