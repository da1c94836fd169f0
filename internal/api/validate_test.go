package api

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/apperr"
	"github.com/parley-ai/parley/internal/model"
)

func validRequest() *chatRequest {
	return &chatRequest{
		ID: uuid.NewString(),
		Message: messagePayload{
			ID:        uuid.NewString(),
			CreatedAt: time.Now(),
			Role:      "user",
			Content:   "hello",
			Parts:     []textPartPayload{{Type: "text", Text: "hello"}},
		},
		SelectedChatModel:      model.DefaultChatModel,
		SelectedVisibilityType: "private",
	}
}

func TestValidateChatRequest(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(req *chatRequest)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(*chatRequest) {},
		},
		{
			name: "valid with attachment",
			mutate: func(req *chatRequest) {
				req.Message.Attachments = []attachmentPayload{{
					URL:         "/api/files/" + uuid.NewString(),
					Name:        "photo.png",
					ContentType: "image/png",
					Size:        1024,
				}}
			},
		},
		{
			name:    "content at limit",
			mutate:  func(req *chatRequest) { req.Message.Content = strings.Repeat("x", 2000) },
			wantErr: false,
		},
		{
			name:    "content over limit",
			mutate:  func(req *chatRequest) { req.Message.Content = strings.Repeat("x", 2001) },
			wantErr: true,
		},
		{
			name:    "empty content",
			mutate:  func(req *chatRequest) { req.Message.Content = "" },
			wantErr: true,
		},
		{
			name:    "bad chat id",
			mutate:  func(req *chatRequest) { req.ID = "123" },
			wantErr: true,
		},
		{
			name:    "bad message id",
			mutate:  func(req *chatRequest) { req.Message.ID = "abc" },
			wantErr: true,
		},
		{
			name:    "non-user role",
			mutate:  func(req *chatRequest) { req.Message.Role = "system" },
			wantErr: true,
		},
		{
			name:    "no parts",
			mutate:  func(req *chatRequest) { req.Message.Parts = nil },
			wantErr: true,
		},
		{
			name:    "non-text part",
			mutate:  func(req *chatRequest) { req.Message.Parts[0].Type = "image" },
			wantErr: true,
		},
		{
			name:    "unsupported model",
			mutate:  func(req *chatRequest) { req.SelectedChatModel = "claude-3" },
			wantErr: true,
		},
		{
			name:    "bad visibility",
			mutate:  func(req *chatRequest) { req.SelectedVisibilityType = "hidden" },
			wantErr: true,
		},
		{
			name: "disallowed attachment type",
			mutate: func(req *chatRequest) {
				req.Message.Attachments = []attachmentPayload{{
					URL:         "/api/files/" + uuid.NewString(),
					Name:        "tool.exe",
					ContentType: "application/x-msdownload",
				}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := validateChatRequest(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateChatRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if ae := apperr.From(err); ae.Kind != apperr.KindBadRequest {
					t.Errorf("error kind = %s, want %s", ae.Kind, apperr.KindBadRequest)
				}
			}
		})
	}
}

func TestAttachmentAllowed(t *testing.T) {
	allowed := []string{"image/png", "application/pdf", "audio/mp3", "video/mp4", "text/markdown"}
	for _, ct := range allowed {
		if !attachmentAllowed(ct) {
			t.Errorf("attachmentAllowed(%q) = false, want true", ct)
		}
	}
	denied := []string{"application/x-msdownload", "application/octet-stream", "text/html", ""}
	for _, ct := range denied {
		if attachmentAllowed(ct) {
			t.Errorf("attachmentAllowed(%q) = true, want false", ct)
		}
	}
}
