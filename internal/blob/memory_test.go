package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "files/a.txt", "text/plain", strings.NewReader("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	obj, err := s.Get(ctx, "files/a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer obj.Reader.Close()

	data, err := io.ReadAll(obj.Reader)
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want hello", data)
	}
	if obj.ContentType != "text/plain" {
		t.Errorf("content type = %q, want text/plain", obj.ContentType)
	}
	if obj.Size != 5 {
		t.Errorf("size = %d, want 5", obj.Size)
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "k", "text/plain", strings.NewReader("v1")); err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	if err := s.Put(ctx, "k", "text/plain", strings.NewReader("v2")); err != nil {
		t.Fatalf("Put v2: %v", err)
	}

	obj, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer obj.Reader.Close()
	data, _ := io.ReadAll(obj.Reader)
	if string(data) != "v2" {
		t.Errorf("content = %q, want v2", data)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}
