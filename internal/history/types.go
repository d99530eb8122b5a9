// Package history persists conversation turns and bounds them into upstream
// call windows.
package history

import (
	"time"

	"github.com/lumenhq/lumen/internal/attachment"
)

// Turn roles. Upstream uses the same pair.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one conversation turn as exchanged with clients and persisted.
// ThoughtSignature is only present on model turns; it must be echoed back
// verbatim on the next upstream call for continuity-sensitive variants.
type Turn struct {
	Role             string                  `json:"role"`
	Text             string                  `json:"text"`
	Attachments      []attachment.Attachment `json:"attachments,omitempty"`
	ImageHandles     []string                `json:"imageHandles,omitempty"`
	ThoughtSignature string                  `json:"thoughtSignature,omitempty"`
}

// Conversation is one persisted conversation record.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one persisted turn with its record identity.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	CreatedAt      time.Time `json:"createdAt"`
	Turn
}
