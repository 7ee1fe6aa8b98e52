package api

import (
	"github.com/codeready-toolchain/storeassist/pkg/attachment"
	"github.com/codeready-toolchain/storeassist/pkg/format"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/session"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	SessionID     string             `json:"session_id,omitempty"`
	Busy          bool               `json:"busy"`
	Connections   int                `json:"connections"`
	Configuration ConfigurationStats `json:"configuration"`
}

// ConfigurationStats contains counts of loaded configuration items.
type ConfigurationStats struct {
	MCPServers   int `json:"mcp_servers"`
	AllowedTypes int `json:"allowed_types"`
}

// AcceptedResponse is returned by endpoints that start a turn in the
// background. Progress arrives over the WebSocket feed.
type AcceptedResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// SuggestionGroupResponse is one field group of pending suggestions.
type SuggestionGroupResponse struct {
	Entity       models.EntityRef    `json:"entity"`
	Field        string              `json:"field"`
	FieldLabel   string              `json:"field_label"`
	OptionsLabel string              `json:"options_label"`
	CurrentValue any                 `json:"current_value"`
	Suggestions  []models.Suggestion `json:"suggestions"`
}

// AttachmentResponse describes a queued attachment without its payload.
type AttachmentResponse struct {
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	Size       int    `json:"size"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// AttachmentsResponse is returned by POST /api/v1/attachments.
type AttachmentsResponse struct {
	Attachments []AttachmentResponse `json:"attachments"`
	Rejections  []RejectionResponse  `json:"rejections,omitempty"`
}

// RejectionResponse explains why a file was not queued.
type RejectionResponse struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

// StateResponse is returned by GET /api/v1/state.
type StateResponse struct {
	SessionID     string                    `json:"session_id,omitempty"`
	Title         string                    `json:"title,omitempty"`
	Entity        models.EntityRef          `json:"entity"`
	Messages      []models.Message          `json:"messages"`
	Streaming     *models.Message           `json:"streaming,omitempty"`
	Suggestions   []SuggestionGroupResponse `json:"suggestions"`
	PendingFields []string                  `json:"pending_fields"`
	Attachments   []AttachmentResponse      `json:"attachments"`
	Usage         models.TokenUsage         `json:"usage"`
	Options       []string                  `json:"options,omitempty"`
	Confirmation  string                    `json:"confirmation,omitempty"`
	Images        []models.GeneratedImage   `json:"images,omitempty"`
	Proposals     []models.CatalogProposal  `json:"proposals,omitempty"`
	Busy          bool                      `json:"busy"`
	Balance       *float64                  `json:"balance,omitempty"`
}

func newStateResponse(st session.State) *StateResponse {
	resp := &StateResponse{
		SessionID:     st.SessionID,
		Title:         st.Title,
		Entity:        st.Entity.Ref(),
		Messages:      make([]models.Message, 0, len(st.Messages)),
		Streaming:     st.Streaming,
		Suggestions:   make([]SuggestionGroupResponse, 0, len(st.Groups)),
		PendingFields: st.PendingFields,
		Attachments:   newAttachmentResponses(st.Attachments),
		Usage:         st.Usage,
		Options:       st.Options,
		Confirmation:  st.Confirmation,
		Images:        st.Images,
		Proposals:     st.Proposals,
		Busy:          st.Busy,
	}
	if resp.PendingFields == nil {
		resp.PendingFields = []string{}
	}
	for _, msg := range st.Messages {
		// Payloads were already sent; the panel only needs the names.
		if len(msg.Attachments) > 0 {
			atts := make([]models.Attachment, len(msg.Attachments))
			for i, a := range msg.Attachments {
				atts[i] = models.Attachment{Filename: a.Filename, MimeType: a.MimeType}
			}
			msg.Attachments = atts
		}
		resp.Messages = append(resp.Messages, msg)
	}
	for _, g := range st.Groups {
		resp.Suggestions = append(resp.Suggestions, SuggestionGroupResponse{
			Entity:       g.Key.Entity,
			Field:        g.Key.Field,
			FieldLabel:   format.FieldLabel(g.Key.Field),
			OptionsLabel: g.OptionsLabel(),
			CurrentValue: g.CurrentValue,
			Suggestions:  g.Suggestions,
		})
	}
	if st.BalanceKnown {
		b := st.Balance
		resp.Balance = &b
	}
	return resp
}

func newAttachmentResponses(atts []models.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(atts))
	for _, a := range atts {
		r := AttachmentResponse{Filename: a.Filename, MimeType: a.MimeType, Size: a.Size}
		if a.PreviewHandle != "" {
			r.PreviewURL = "/previews/" + a.PreviewHandle
		}
		out = append(out, r)
	}
	return out
}

func newRejectionResponses(rejections []attachment.Rejection) []RejectionResponse {
	var out []RejectionResponse
	for _, r := range rejections {
		out = append(out, RejectionResponse{Filename: r.Filename, Reason: string(r.Reason), Message: r.Error()})
	}
	return out
}
