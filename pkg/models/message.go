package models

import "time"

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleTool tags an outbound payload carrying tool results.
	RoleTool Role = "tool"
)

// TokenUsage holds token counters reported by the remote service.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Total returns input + output.
func (u TokenUsage) Total() int {
	return u.Input + u.Output
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
}

// Attachment is a file queued for sending with the next message.
// Data is the base64 encoded payload. PreviewHandle is only set for images
// and stays valid until the attachment list is cleared.
type Attachment struct {
	Filename      string `json:"filename"`
	MimeType      string `json:"mime_type"`
	Data          string `json:"data"`
	Size          int    `json:"-"`
	PreviewHandle string `json:"-"`
}

// IsImage reports whether the attachment carries an image.
func (a Attachment) IsImage() bool {
	return IsImageType(a.MimeType)
}

// IsImageType reports whether mimeType is an image/* type.
func IsImageType(mimeType string) bool {
	return len(mimeType) > 6 && mimeType[:6] == "image/"
}

// Message is one entry of a conversation transcript.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Usage       *TokenUsage  `json:"usage,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
