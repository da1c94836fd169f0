package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := New(tt.kind, "chat", "boom")
			if got := e.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	e := New(KindRateLimit, "chat", "daily quota exceeded")
	if got, want := e.Code(), "rate_limit:chat"; got != want {
		t.Errorf("Code() = %q, want %q", got, want)
	}

	noSurface := New(KindInternal, "", "boom")
	if got, want := noSurface.Code(), "internal"; got != want {
		t.Errorf("Code() = %q, want %q", got, want)
	}
}

func TestFrom(t *testing.T) {
	t.Run("classified error passes through", func(t *testing.T) {
		orig := New(KindForbidden, "chat", "not the owner")
		wrapped := fmt.Errorf("handling request: %w", orig)

		got := From(wrapped)
		if got.Kind != KindForbidden {
			t.Errorf("Kind = %q, want %q", got.Kind, KindForbidden)
		}
	})

	t.Run("unknown error becomes internal with generic message", func(t *testing.T) {
		got := From(errors.New("pq: connection refused to db-host:5432"))
		if got.Kind != KindInternal {
			t.Errorf("Kind = %q, want %q", got.Kind, KindInternal)
		}
		if got.Message == "" || got.Message != "an unexpected error occurred" {
			t.Errorf("Message = %q, want generic text", got.Message)
		}
	})
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("no rows")
	e := Wrap(KindNotFound, "chat", "chat not found", cause)
	if !errors.Is(e, cause) {
		t.Error("errors.Is should see the wrapped cause")
	}
}
