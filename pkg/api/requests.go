package api

// SelectEntityRequest is the HTTP request body for POST /api/v1/entity.
// A non-empty SessionID resumes that session instead of creating one.
type SelectEntityRequest struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Title      string         `json:"title,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
}

// SendMessageRequest is the HTTP request body for POST /api/v1/messages.
type SendMessageRequest struct {
	Content     string `json:"content"`
	QuickAction string `json:"quick_action,omitempty"`
}

// ConfirmationRequest is the HTTP request body for POST /api/v1/confirmation.
type ConfirmationRequest struct {
	Yes bool `json:"yes"`
}

// ImageActionRequest is the HTTP request body for POST /api/v1/images/actions.
type ImageActionRequest struct {
	URL    string `json:"url"`
	Action string `json:"action"`
}
