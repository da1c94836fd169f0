// Package chatstore persists chats, turns, votes, documents,
// suggestions and stream handles in PostgreSQL.
//
// All writers are append-only except the vote upsert. Chat deletion
// cascades to messages, votes and stream handles at the schema level.
package chatstore

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Visibility gates read access to a chat for non-owners.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a recognized visibility value.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// PartType discriminates the typed parts of a message.
type PartType string

const (
	PartText       PartType = "text"
	PartReasoning  PartType = "reasoning"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
)

// Part is one element of a message's ordered part sequence, stored as
// JSONB. Exactly the fields for its type are set.
type Part struct {
	Type PartType `json:"type"`

	// Text and reasoning parts.
	Text string `json:"text,omitempty"`

	// Tool call/result parts.
	CallID   string          `json:"callId,omitempty"`
	ToolName string          `json:"toolName,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`
}

// Attachment references bytes held in the external blob store.
type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size,omitempty"`
}

// Chat is one conversation owned by exactly one user.
type Chat struct {
	ID         uuid.UUID
	UserID     string
	Title      string
	Visibility Visibility
	CreatedAt  time.Time
}

// Message is one turn in a chat. Turns are totally ordered by
// CreatedAt within a chat and never updated in place.
type Message struct {
	ID          uuid.UUID
	ChatID      uuid.UUID
	Role        string
	Parts       []Part
	Attachments []Attachment
	CreatedAt   time.Time
}

// Vote records the current up/down vote for a message. At most one
// row exists per message id.
type Vote struct {
	MessageID uuid.UUID
	ChatID    uuid.UUID
	IsUpvoted bool
	CreatedAt time.Time
}

// DocumentKind classifies artifact content.
type DocumentKind string

const (
	DocumentText  DocumentKind = "text"
	DocumentCode  DocumentKind = "code"
	DocumentSheet DocumentKind = "sheet"
	DocumentImage DocumentKind = "image"
)

// Valid reports whether k is a recognized document kind.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentText, DocumentCode, DocumentSheet, DocumentImage:
		return true
	}
	return false
}

// Document is one version of an artifact. Versions share an id; the
// row with the latest CreatedAt is the current version.
type Document struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UserID    string
	Title     string
	Kind      DocumentKind
	Content   string
}

// Suggestion is a proposed edit against a document.
type Suggestion struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	UserID        string
	OriginalText  string
	SuggestedText string
	Description   string
	IsResolved    bool
	CreatedAt     time.Time
}

// StreamHandle marks that a stream was started for a chat. Append-only
// bookkeeping; no frame replay is reconstructed from it.
type StreamHandle struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	CreatedAt time.Time
}
