package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// Parse maps a RawEvent to its typed Event. Unrecognized types and payloads
// that do not decode into the expected shape become Unknown.
func Parse(raw RawEvent) Event {
	ev, err := parse(raw)
	if err != nil {
		return Unknown{Type: raw.Type, Data: raw.Data}
	}
	return ev
}

func parse(raw RawEvent) (Event, error) {
	data := raw.Data
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage("{}")
	}

	switch Kind(raw.Type) {
	case KindMessageStart:
		var p struct {
			MessageID string `json:"message_id"`
			ID        string `json:"id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return MessageStart{MessageID: firstNonEmpty(p.MessageID, p.ID)}, nil

	case KindContentDelta:
		var p struct {
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return ContentDelta{Delta: p.Delta}, nil

	case KindSuggestion:
		s, err := parseSuggestion(data)
		if err != nil {
			return nil, err
		}
		return SuggestionReceived{Suggestion: s}, nil

	case KindUsage:
		var p struct {
			Tokens models.TokenUsage `json:"tokens"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return Usage{Tokens: p.Tokens}, nil

	case KindBalanceUpdate:
		var p struct {
			NewBalance *flexNumber `json:"new_balance"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.NewBalance == nil {
			return nil, fmt.Errorf("balance_update without new_balance")
		}
		return BalanceUpdate{NewBalance: float64(*p.NewBalance)}, nil

	case KindMessageEnd:
		var p struct {
			MessageID string `json:"message_id"`
			ID        string `json:"id"`
			Content   string `json:"content"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return MessageEnd{MessageID: firstNonEmpty(p.MessageID, p.ID), Content: p.Content}, nil

	case KindDataRequest:
		var p struct {
			Requests       []wireToolRequest `json:"requests"`
			InterimMessage string            `json:"interim_message"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		reqs := make([]models.ToolRequest, 0, len(p.Requests))
		for _, r := range p.Requests {
			reqs = append(reqs, r.toModel())
		}
		return DataRequest{Requests: reqs, InterimMessage: p.InterimMessage}, nil

	case KindToolProcessing:
		msg, err := messageField(data)
		if err != nil {
			return nil, err
		}
		return ToolProcessing{Message: msg}, nil

	case KindImageGenerating:
		msg, err := messageField(data)
		if err != nil {
			return nil, err
		}
		return ImageGenerating{Message: msg}, nil

	case KindImageGenerated:
		var img models.GeneratedImage
		if err := json.Unmarshal(data, &img); err != nil {
			return nil, err
		}
		if img.URL == "" {
			return nil, fmt.Errorf("image_generated without url")
		}
		return ImageGenerated{Image: img}, nil

	case KindCatalogSuggestion:
		var p struct {
			Proposal *models.CatalogProposal `json:"proposal"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Proposal == nil {
			p.Proposal = &models.CatalogProposal{}
			if err := json.Unmarshal(data, p.Proposal); err != nil {
				return nil, err
			}
		}
		return CatalogSuggestion{Proposal: *p.Proposal}, nil

	case KindResearchConfirmation:
		msg, err := messageField(data)
		if err != nil {
			return nil, err
		}
		return ResearchConfirmation{Message: msg}, nil

	case KindDone:
		return Done{}, nil

	case KindError:
		var p struct {
			Message string `json:"message"`
			Error   string `json:"error"`
			Code    string `json:"code"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return Error{Message: firstNonEmpty(p.Message, p.Error), Code: p.Code}, nil
	}

	return nil, fmt.Errorf("unknown event type %q", raw.Type)
}

func messageField(data json.RawMessage) (string, error) {
	var p struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return "", err
	}
	return p.Message, nil
}

// wireSuggestion accepts both the nested {"suggestion": {...}} and the flat
// payload forms.
type wireSuggestion struct {
	ID             flexString        `json:"id"`
	SuggestionID   flexString        `json:"suggestion_id"`
	EntityType     models.EntityType `json:"entity_type"`
	EntityID       flexString        `json:"entity_id"`
	Field          string            `json:"field"`
	CurrentValue   any               `json:"current_value"`
	SuggestedValue any               `json:"suggested_value"`
	Status         string            `json:"status"`
}

func parseSuggestion(data json.RawMessage) (models.Suggestion, error) {
	var nested struct {
		Suggestion *wireSuggestion `json:"suggestion"`
	}
	if err := json.Unmarshal(data, &nested); err != nil {
		return models.Suggestion{}, err
	}
	w := nested.Suggestion
	if w == nil {
		w = &wireSuggestion{}
		if err := json.Unmarshal(data, w); err != nil {
			return models.Suggestion{}, err
		}
	}
	return w.toModel()
}

func (w *wireSuggestion) toModel() (models.Suggestion, error) {
	id := firstNonEmpty(string(w.ID), string(w.SuggestionID))
	if id == "" || w.Field == "" {
		return models.Suggestion{}, fmt.Errorf("suggestion requires id and field")
	}
	status := models.SuggestionStatus(w.Status)
	if status == "" {
		status = models.SuggestionPending
	}
	return models.Suggestion{
		ID:             id,
		EntityType:     w.EntityType,
		EntityID:       string(w.EntityID),
		Field:          w.Field,
		CurrentValue:   w.CurrentValue,
		SuggestedValue: w.SuggestedValue,
		Status:         status,
	}, nil
}

// ParseSuggestion decodes a suggestion object as found in session history.
func ParseSuggestion(data json.RawMessage) (models.Suggestion, error) {
	return parseSuggestion(data)
}

type wireToolRequest struct {
	ToolCallID flexString     `json:"tool_call_id"`
	ID         flexString     `json:"id"`
	Name       string         `json:"name"`
	Tool       string         `json:"tool"`
	Params     map[string]any `json:"params"`
	Arguments  map[string]any `json:"arguments"`
}

func (w wireToolRequest) toModel() models.ToolRequest {
	params := w.Params
	if params == nil {
		params = w.Arguments
	}
	return models.ToolRequest{
		ID:     firstNonEmpty(string(w.ToolCallID), string(w.ID)),
		Name:   firstNonEmpty(w.Name, w.Tool),
		Params: params,
	}
}

// flexNumber accepts 850, 850.5 and "850".
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", b, err)
	}
	*n = flexNumber(f)
	return nil
}

// flexString accepts ids sent either as strings or numbers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
