package api

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/parley-ai/parley/internal/apperr"
	"github.com/parley-ai/parley/internal/model"
)

// validate is the shared validator instance for request payloads.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	for _, ct := range supportedAttachmentTypes {
		attachmentTypeSet[ct] = struct{}{}
	}
}

// supportedAttachmentTypes is the content-type allow-list shared by
// message attachments and file uploads.
var supportedAttachmentTypes = []string{
	// Image formats
	"image/png",
	"image/jpg",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/svg+xml",
	// Document formats
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/plain",
	"text/csv",
	"text/markdown",
	"application/json",
	"application/xml",
	"text/xml",
	// Audio formats
	"audio/mp3",
	"audio/wav",
	"audio/m4a",
	"audio/ogg",
	// Video formats
	"video/mp4",
	"video/webm",
	"video/mov",
	"video/avi",
}

var attachmentTypeSet = make(map[string]struct{}, len(supportedAttachmentTypes))

// attachmentAllowed reports whether contentType is on the allow-list.
func attachmentAllowed(contentType string) bool {
	_, ok := attachmentTypeSet[contentType]
	return ok
}

// textPartPayload is one typed text part of an inbound message.
type textPartPayload struct {
	Type string `json:"type" validate:"required,eq=text"`
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

// attachmentPayload references uploaded bytes attached to a message.
type attachmentPayload struct {
	URL         string `json:"url" validate:"required,max=2048"`
	Name        string `json:"name" validate:"required,min=1,max=2000"`
	ContentType string `json:"contentType" validate:"required"`
	Size        int64  `json:"size" validate:"gte=0"`
}

// messagePayload is the inbound user turn.
type messagePayload struct {
	ID          string              `json:"id" validate:"required,uuid"`
	CreatedAt   time.Time           `json:"createdAt"`
	Role        string              `json:"role" validate:"required,eq=user"`
	Content     string              `json:"content" validate:"required,min=1,max=2000"`
	Parts       []textPartPayload   `json:"parts" validate:"required,min=1,dive"`
	Attachments []attachmentPayload `json:"attachments" validate:"omitempty,dive"`
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	ID                     string         `json:"id" validate:"required,uuid"`
	Message                messagePayload `json:"message" validate:"required"`
	SelectedChatModel      string         `json:"selectedChatModel" validate:"required"`
	SelectedVisibilityType string         `json:"selectedVisibilityType" validate:"required,oneof=public private"`
}

// validateChatRequest applies tag validation plus the checks the tags
// cannot express: the model allow-list and the attachment content-type
// allow-list. All violations are bad_request; they happen before any
// stream is opened.
func validateChatRequest(req *chatRequest) error {
	if err := validate.Struct(req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "chat", "invalid request body", err)
	}
	if !model.IsSupported(req.SelectedChatModel) {
		return apperr.New(apperr.KindBadRequest, "chat",
			fmt.Sprintf("unsupported chat model %q", req.SelectedChatModel))
	}
	for _, a := range req.Message.Attachments {
		if !attachmentAllowed(a.ContentType) {
			return apperr.New(apperr.KindBadRequest, "chat",
				fmt.Sprintf("attachment content type %q is not allowed", a.ContentType))
		}
	}
	return nil
}
