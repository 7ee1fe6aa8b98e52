package events

import (
	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// Payload is implemented by every notification payload.
type Payload interface {
	EventType() string
}

// Notification is one published payload together with its routing data.
type Notification struct {
	Type      string  `json:"type"`
	SessionID string  `json:"session_id,omitempty"`
	Data      Payload `json:"data"`
}

// MessageCreatedPayload announces a new message in the transcript. For a
// streaming assistant message the content is empty.
type MessageCreatedPayload struct {
	Message   models.Message `json:"message"`
	Streaming bool           `json:"streaming"`
}

// MessageDeltaPayload carries one content delta of a streaming message.
type MessageDeltaPayload struct {
	MessageID string `json:"message_id"`
	Delta     string `json:"delta"`
	Content   string `json:"content"` // accumulated content so far
}

// MessageCompletedPayload carries a finalized message.
type MessageCompletedPayload struct {
	Message models.Message `json:"message"`
	HTML    string         `json:"html,omitempty"`
	Options []string       `json:"options,omitempty"`
}

// ThinkingPayload shows or hides the "thinking" placeholder.
type ThinkingPayload struct {
	Visible bool `json:"visible"`
}

// StatusPayload shows a transient status line. Empty text hides it.
type StatusPayload struct {
	Text string `json:"text"`
}

// ImagePlaceholderPayload shows or hides the image generation placeholder.
type ImagePlaceholderPayload struct {
	Visible bool   `json:"visible"`
	Text    string `json:"text,omitempty"`
}

// ImageGeneratedPayload carries a generated image and the actions offered on it.
type ImageGeneratedPayload struct {
	Image   models.GeneratedImage `json:"image"`
	Actions []models.ImageAction  `json:"actions"`
}

// SuggestionAddedPayload describes a pending suggestion in its field group.
type SuggestionAddedPayload struct {
	Suggestion   models.Suggestion `json:"suggestion"`
	Entity       models.EntityRef  `json:"entity"`
	FieldLabel   string            `json:"field_label"`
	GroupSize    int               `json:"group_size"`
	OptionsLabel string            `json:"options_label"`
	Added        []string          `json:"added,omitempty"`
	Removed      []string          `json:"removed,omitempty"`
}

// SuggestionResolvedPayload reports that a suggestion left the pending map.
type SuggestionResolvedPayload struct {
	SuggestionID string                  `json:"suggestion_id"`
	Status       models.SuggestionStatus `json:"status"`
}

// FieldPendingPayload toggles the pending-change indicator of an entity field.
type FieldPendingPayload struct {
	Entity  models.EntityRef `json:"entity"`
	Field   string           `json:"field"`
	Pending bool             `json:"pending"`
}

// UsagePayload carries the token usage of the last turn and the session total.
type UsagePayload struct {
	Turn  models.TokenUsage `json:"turn"`
	Total models.TokenUsage `json:"total"`
}

// BalanceFramePayload is one frame of the balance animation.
type BalanceFramePayload struct {
	Value float64 `json:"value"`
	Final bool    `json:"final"`
}

// CatalogProposalPayload carries a catalog reorganization proposal.
type CatalogProposalPayload struct {
	Proposal models.CatalogProposal `json:"proposal"`
}

// ResearchConfirmationPayload asks the user for a yes/no answer.
type ResearchConfirmationPayload struct {
	Message string `json:"message"`
}

// AttachmentsChangedPayload describes the compose attachment buffer.
type AttachmentsChangedPayload struct {
	Filenames  []string `json:"filenames"`
	Remaining  int      `json:"remaining"`
	Rejections []string `json:"rejections,omitempty"`
}

// TurnErrorPayload carries a user-visible error.
type TurnErrorPayload struct {
	Message string `json:"message"`
}

// TurnDonePayload marks the end of a turn; input is enabled again.
type TurnDonePayload struct{}

// SessionChangedPayload announces a new active session.
type SessionChangedPayload struct {
	SessionID string           `json:"session_id"`
	Entity    models.EntityRef `json:"entity"`
	Title     string           `json:"title"`
}

func (MessageCreatedPayload) EventType() string       { return TypeMessageCreated }
func (MessageDeltaPayload) EventType() string         { return TypeMessageDelta }
func (MessageCompletedPayload) EventType() string     { return TypeMessageCompleted }
func (ThinkingPayload) EventType() string             { return TypeThinking }
func (StatusPayload) EventType() string               { return TypeStatus }
func (ImagePlaceholderPayload) EventType() string     { return TypeImagePlaceholder }
func (ImageGeneratedPayload) EventType() string       { return TypeImageGenerated }
func (SuggestionAddedPayload) EventType() string      { return TypeSuggestionAdded }
func (SuggestionResolvedPayload) EventType() string   { return TypeSuggestionResolved }
func (FieldPendingPayload) EventType() string         { return TypeFieldPending }
func (UsagePayload) EventType() string                { return TypeUsageUpdated }
func (BalanceFramePayload) EventType() string         { return TypeBalanceFrame }
func (CatalogProposalPayload) EventType() string      { return TypeCatalogProposal }
func (ResearchConfirmationPayload) EventType() string { return TypeResearchConfirmation }
func (AttachmentsChangedPayload) EventType() string   { return TypeAttachmentsChanged }
func (TurnErrorPayload) EventType() string            { return TypeTurnError }
func (TurnDonePayload) EventType() string             { return TypeTurnDone }
func (SessionChangedPayload) EventType() string       { return TypeSessionChanged }
