package models

// SuggestionStatus is the lifecycle state of a suggestion.
type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionApplied   SuggestionStatus = "applied"
	SuggestionDiscarded SuggestionStatus = "discarded"
)

// Suggestion is an AI-proposed replacement value for one field of an entity.
// EntityType/EntityID are empty when the suggestion targets the session's own
// entity.
type Suggestion struct {
	ID             string           `json:"id"`
	EntityType     EntityType       `json:"entity_type,omitempty"`
	EntityID       string           `json:"entity_id,omitempty"`
	Field          string           `json:"field"`
	CurrentValue   any              `json:"current_value"`
	SuggestedValue any              `json:"suggested_value"`
	Status         SuggestionStatus `json:"status"`
}

// Target resolves the entity the suggestion applies to, falling back to the
// session's entity.
func (s *Suggestion) Target(session EntityRef) EntityRef {
	if s.EntityType == "" {
		return session
	}
	return EntityRef{Type: s.EntityType, ID: s.EntityID}
}
