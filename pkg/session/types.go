package session

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/remote"
	"github.com/codeready-toolchain/storeassist/pkg/suggestion"
)

var (
	// ErrBusy is returned when a send or session creation is already in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrNoSession is returned by operations that need an active session.
	ErrNoSession = errors.New("no active session")
	// ErrTooManyToolRounds is returned when the service keeps asking for data
	// past the configured number of tool rounds.
	ErrTooManyToolRounds = errors.New("too many tool rounds")
	// ErrToolData wraps failures of a tool batch.
	ErrToolData = errors.New("fetch requested data")
	// ErrEmptyMessage is returned for a send with no text, quick action or attachments.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInvalidEntity is returned for an entity with an unknown type.
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrImageNotFound is returned by ImageAction for an image not in the session.
	ErrImageNotFound = errors.New("image not found")
	// ErrActionNotAvailable is returned by ImageAction for an action the image does not offer.
	ErrActionNotAvailable = errors.New("image action not available")
	// ErrNoOption is returned by SelectOption for an out of range index.
	ErrNoOption = errors.New("no such option")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session manager closed")
)

// MsgToolData is shown when the host could not produce requested data.
const MsgToolData = "Could not load the store data the assistant asked for. Please try again."

// StreamError is a failure reported by the service inside the event stream.
type StreamError struct {
	Message string
	Code    string
}

func (e *StreamError) Error() string {
	if e.Code != "" {
		return "stream error " + e.Code + ": " + e.Message
	}
	return "stream error: " + e.Message
}

// Is matches remote.ErrInsufficientBalance for out-of-credit codes.
func (e *StreamError) Is(target error) bool {
	return target == remote.ErrInsufficientBalance && remote.IsInsufficientBalanceCode(e.Code)
}

// Session is the conversation bound to one entity. Transcript state is
// guarded by mu; pending suggestions live in their own store.
type Session struct {
	ID          string
	Title       string
	Suggestions *suggestion.Store

	mu           sync.RWMutex
	ref          models.EntityRef
	messages     []models.Message
	streaming    *streamingMessage
	usage        models.TokenUsage
	options      []string
	confirmation string
	images       []models.GeneratedImage
	proposals    []models.CatalogProposal

	thinking     bool
	status       string
	imagePending bool
}

type streamingMessage struct {
	msg     models.Message
	buf     strings.Builder
	visible bool
}

// Ref returns the entity the session is bound to.
func (s *Session) Ref() models.EntityRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ref
}

// AddMessage appends a finalized message to the transcript.
func (s *Session) AddMessage(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// Options returns the quick options offered by the last assistant message.
func (s *Session) Options() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.options)
}

// Confirmation returns the pending research question, if any.
func (s *Session) Confirmation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confirmation
}

// Usage returns the accumulated token usage of the session.
func (s *Session) Usage() models.TokenUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}

func (s *Session) image(url string) (models.GeneratedImage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, img := range s.images {
		if img.URL == url {
			return img, true
		}
	}
	return models.GeneratedImage{}, false
}

// State is a read-only snapshot of the manager and its active session.
type State struct {
	SessionID     string
	Title         string
	Entity        models.Entity
	Messages      []models.Message
	Streaming     *models.Message
	Groups        []suggestion.Group
	PendingFields []string
	Attachments   []models.Attachment
	Usage         models.TokenUsage
	Options       []string
	Confirmation  string
	Images        []models.GeneratedImage
	Proposals     []models.CatalogProposal
	Busy          bool
	Balance       float64
	BalanceKnown  bool
}

// clone fills the session part of a snapshot.
func (s *Session) clone(st *State) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st.SessionID = s.ID
	st.Title = s.Title
	st.Messages = slices.Clone(s.messages)
	if s.streaming != nil && s.streaming.visible {
		msg := s.streaming.msg
		msg.Content = s.streaming.buf.String()
		st.Streaming = &msg
	}
	st.Usage = s.usage
	st.Options = slices.Clone(s.options)
	st.Confirmation = s.confirmation
	st.Images = slices.Clone(s.images)
	st.Proposals = slices.Clone(s.proposals)
}
