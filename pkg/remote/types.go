package remote

import (
	"encoding/json"
	"io"
	"time"

	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/stream"
)

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	EntityType   models.EntityType `json:"entity_type"`
	Title        string            `json:"title"`
	ProductID    string            `json:"product_id,omitempty"`
	CategoryID   string            `json:"category_id,omitempty"`
	ProductData  map[string]any    `json:"product_data,omitempty"`
	CategoryData map[string]any    `json:"category_data,omitempty"`
	StoreContext map[string]any    `json:"store_context,omitempty"`
}

// NewCreateSessionRequest builds the request for entity, placing the id and
// snapshot under the keys matching its type.
func NewCreateSessionRequest(entity *models.Entity, title string, store models.StoreContext) *CreateSessionRequest {
	req := &CreateSessionRequest{
		EntityType:   entity.Type,
		Title:        title,
		StoreContext: store.NonEmpty(),
	}
	switch entity.Type {
	case models.EntityTypeProduct:
		req.ProductID = entity.ID
		req.ProductData = entity.Snapshot()
	case models.EntityTypeCategory:
		req.CategoryID = entity.ID
		req.CategoryData = entity.Snapshot()
	}
	return req
}

// SessionHistory is what GET /sessions/{id} returns.
type SessionHistory struct {
	Messages           []models.Message
	PendingSuggestions []models.Suggestion
}

// MessageRequest is the body of POST /sessions/{id}/messages. Exactly one of
// Content, QuickAction or ToolResults is normally set.
type MessageRequest struct {
	Content     string              `json:"content,omitempty"`
	QuickAction string              `json:"quick_action,omitempty"`
	Role        models.Role         `json:"role,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// ToolResultsRequest tags results as a tool continuation.
func ToolResultsRequest(results []models.ToolResult) *MessageRequest {
	return &MessageRequest{Role: models.RoleTool, ToolResults: results}
}

// Reply is the response to a message send: either a live event stream or a
// single JSON document.
type Reply struct {
	Stream io.ReadCloser
	JSON   *MessageResponse
}

// Close releases the stream body, if any.
func (r *Reply) Close() error {
	if r.Stream != nil {
		return r.Stream.Close()
	}
	return nil
}

// MessageResponse is the non-streaming reply body.
type MessageResponse struct {
	AssistantMessage *models.Message
	Suggestions      []models.Suggestion
	TokensUsed       *models.TokenUsage
}

// SuggestionAction is the PATCH body action.
type SuggestionAction string

const (
	ActionApply   SuggestionAction = "apply"
	ActionDiscard SuggestionAction = "discard"
)

// wireMessage tolerates the handful of shapes session history uses.
type wireMessage struct {
	ID          json.RawMessage     `json:"id"`
	Role        models.Role         `json:"role"`
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments"`
	Usage       *models.TokenUsage  `json:"usage"`
	TokensUsed  json.RawMessage     `json:"tokens_used"`
	CreatedAt   string              `json:"created_at"`
}

func (w *wireMessage) toModel() models.Message {
	msg := models.Message{
		ID:          rawID(w.ID),
		Role:        w.Role,
		Content:     w.Content,
		Attachments: w.Attachments,
		Usage:       w.Usage,
	}
	if msg.Role == "" {
		msg.Role = models.RoleAssistant
	}
	if msg.Usage == nil {
		msg.Usage = decodeTokens(w.TokensUsed)
	}
	if w.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
			msg.CreatedAt = t
		} else if t, err := time.Parse(time.DateTime, w.CreatedAt); err == nil {
			msg.CreatedAt = t.UTC()
		}
	}
	return msg
}

// decodeTokens accepts {"input":..,"output":..} or a bare total, which is
// reported as output tokens.
func decodeTokens(raw json.RawMessage) *models.TokenUsage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var usage models.TokenUsage
	if err := json.Unmarshal(raw, &usage); err == nil {
		return &usage
	}
	var total int
	if err := json.Unmarshal(raw, &total); err == nil {
		return &models.TokenUsage{Output: total}
	}
	return nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func decodeSuggestions(raws []json.RawMessage) []models.Suggestion {
	out := make([]models.Suggestion, 0, len(raws))
	for _, raw := range raws {
		s, err := stream.ParseSuggestion(raw)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

