// Package events is the bridge between conversation state and whatever
// renders it. State transitions publish typed notifications; the render
// layer (a terminal, a browser over WebSocket, a test) subscribes.
//
// Streaming assistant text follows one lifecycle:
//
//	message.created   {message: {id, content: ""}}
//	message.delta     {message_id, delta}   (repeated)
//	message.completed {message: {id, content: "full text"}}
//
// Deltas are transient; a client that reconnects mid-stream gets the final
// content from message.completed.
package events

// Notification types.
const (
	TypeMessageCreated       = "message.created"
	TypeMessageDelta         = "message.delta"
	TypeMessageCompleted     = "message.completed"
	TypeThinking             = "placeholder.thinking"
	TypeStatus               = "placeholder.status"
	TypeImagePlaceholder     = "placeholder.image"
	TypeImageGenerated       = "image.generated"
	TypeSuggestionAdded      = "suggestion.added"
	TypeSuggestionResolved   = "suggestion.resolved"
	TypeFieldPending         = "field.pending"
	TypeUsageUpdated         = "usage.updated"
	TypeBalanceFrame         = "balance.frame"
	TypeCatalogProposal      = "catalog.proposal"
	TypeResearchConfirmation = "research.confirmation"
	TypeAttachmentsChanged   = "attachments.changed"
	TypeTurnError            = "turn.error"
	TypeTurnDone             = "turn.done"
	TypeSessionChanged       = "session.changed"
)

// GlobalChannel carries notifications that are not tied to a session,
// such as balance frames.
const GlobalChannel = "global"

// SessionChannel returns the channel name for a specific session's events.
// Format: "session:{session_id}"
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// ChannelFor returns the channel a notification for sessionID is delivered on.
func ChannelFor(sessionID string) string {
	if sessionID == "" {
		return GlobalChannel
	}
	return SessionChannel(sessionID)
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"` // Channel name (e.g., "session:abc-123")
}
