package stream

import (
	"encoding/json"

	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// Kind identifies a stream event.
type Kind string

// Wire event kinds.
const (
	KindMessageStart         Kind = "message_start"
	KindContentDelta         Kind = "content_delta"
	KindSuggestion           Kind = "suggestion"
	KindUsage                Kind = "usage"
	KindBalanceUpdate        Kind = "balance_update"
	KindMessageEnd           Kind = "message_end"
	KindDataRequest          Kind = "data_request"
	KindToolProcessing       Kind = "tool_processing"
	KindImageGenerating      Kind = "image_generating"
	KindImageGenerated       Kind = "image_generated"
	KindCatalogSuggestion    Kind = "catalog_suggestion"
	KindResearchConfirmation Kind = "research_confirmation"
	KindDone                 Kind = "done"
	KindError                Kind = "error"
)

// Kinds that never appear on the wire.
const (
	// KindEnd is synthesized when the transport finishes, with or without done.
	KindEnd Kind = "end"
	// KindUnknown wraps event types this client does not understand.
	KindUnknown Kind = "unknown"
)

// WireKinds lists every kind the remote service may send, in protocol order.
func WireKinds() []Kind {
	return []Kind{
		KindMessageStart,
		KindContentDelta,
		KindSuggestion,
		KindUsage,
		KindBalanceUpdate,
		KindMessageEnd,
		KindDataRequest,
		KindToolProcessing,
		KindImageGenerating,
		KindImageGenerated,
		KindCatalogSuggestion,
		KindResearchConfirmation,
		KindDone,
		KindError,
	}
}

// AllKinds is WireKinds plus the synthesized End and Unknown kinds.
func AllKinds() []Kind {
	return append(WireKinds(), KindEnd, KindUnknown)
}

// Event is the closed set of decoded stream events.
type Event interface {
	Kind() Kind
	event()
}

// MessageStart opens a streaming assistant message.
type MessageStart struct{ MessageID string }

// ContentDelta appends text to the streaming message.
type ContentDelta struct{ Delta string }

// SuggestionReceived carries one proposed field edit.
type SuggestionReceived struct{ Suggestion models.Suggestion }

// Usage reports token counters. It never affects the balance.
type Usage struct{ Tokens models.TokenUsage }

// BalanceUpdate is the authoritative new credit balance.
type BalanceUpdate struct{ NewBalance float64 }

// MessageEnd closes the streaming message. Content is the server's copy of
// the full text, if it sent one.
type MessageEnd struct {
	MessageID string
	Content   string
}

// DataRequest asks the host for data before the AI continues.
type DataRequest struct {
	Requests       []models.ToolRequest
	InterimMessage string
}

// ToolProcessing replaces the transient status line.
type ToolProcessing struct{ Message string }

// ImageGenerating shows the generation placeholder.
type ImageGenerating struct{ Message string }

// ImageGenerated delivers a finished image.
type ImageGenerated struct{ Image models.GeneratedImage }

// CatalogSuggestion carries a multi-step reorganization plan.
type CatalogSuggestion struct{ Proposal models.CatalogProposal }

// ResearchConfirmation asks the user a yes/no question.
type ResearchConfirmation struct{ Message string }

// Done ends the turn.
type Done struct{}

// Error ends the turn with a server-reported failure.
type Error struct {
	Message string
	Code    string
}

// End is delivered once after the last event of a stream. Err is the
// transport error that cut the stream short, nil on a clean close.
type End struct{ Err error }

// Unknown is an event this client does not handle, or whose payload did not
// have the expected shape.
type Unknown struct {
	Type string
	Data json.RawMessage
}

func (MessageStart) Kind() Kind         { return KindMessageStart }
func (ContentDelta) Kind() Kind         { return KindContentDelta }
func (SuggestionReceived) Kind() Kind   { return KindSuggestion }
func (Usage) Kind() Kind                { return KindUsage }
func (BalanceUpdate) Kind() Kind        { return KindBalanceUpdate }
func (MessageEnd) Kind() Kind           { return KindMessageEnd }
func (DataRequest) Kind() Kind          { return KindDataRequest }
func (ToolProcessing) Kind() Kind       { return KindToolProcessing }
func (ImageGenerating) Kind() Kind      { return KindImageGenerating }
func (ImageGenerated) Kind() Kind       { return KindImageGenerated }
func (CatalogSuggestion) Kind() Kind    { return KindCatalogSuggestion }
func (ResearchConfirmation) Kind() Kind { return KindResearchConfirmation }
func (Done) Kind() Kind                 { return KindDone }
func (Error) Kind() Kind                { return KindError }
func (End) Kind() Kind                  { return KindEnd }
func (Unknown) Kind() Kind              { return KindUnknown }

func (MessageStart) event()         {}
func (ContentDelta) event()         {}
func (SuggestionReceived) event()   {}
func (Usage) event()                {}
func (BalanceUpdate) event()        {}
func (MessageEnd) event()           {}
func (DataRequest) event()          {}
func (ToolProcessing) event()       {}
func (ImageGenerating) event()      {}
func (ImageGenerated) event()       {}
func (CatalogSuggestion) event()    {}
func (ResearchConfirmation) event() {}
func (Done) event()                 {}
func (Error) event()                {}
func (End) event()                  {}
func (Unknown) event()              {}
