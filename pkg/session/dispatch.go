package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/format"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/stream"
)

type handler func(m *Manager, ctx context.Context, t *turn, ev stream.Event)

// handlers must cover every stream.Kind.
var handlers = map[stream.Kind]handler{
	stream.KindMessageStart:         (*Manager).onMessageStart,
	stream.KindContentDelta:         (*Manager).onContentDelta,
	stream.KindSuggestion:           (*Manager).onSuggestion,
	stream.KindUsage:                (*Manager).onUsage,
	stream.KindBalanceUpdate:        (*Manager).onBalanceUpdate,
	stream.KindMessageEnd:           (*Manager).onMessageEnd,
	stream.KindDataRequest:          (*Manager).onDataRequest,
	stream.KindToolProcessing:       (*Manager).onToolProcessing,
	stream.KindImageGenerating:      (*Manager).onImageGenerating,
	stream.KindImageGenerated:       (*Manager).onImageGenerated,
	stream.KindCatalogSuggestion:    (*Manager).onCatalogSuggestion,
	stream.KindResearchConfirmation: (*Manager).onResearchConfirmation,
	stream.KindDone:                 (*Manager).onDone,
	stream.KindError:                (*Manager).onError,
	stream.KindEnd:                  (*Manager).onEnd,
	stream.KindUnknown:              (*Manager).onUnknown,
}

// dispatch applies one event to the turn's session. Events for a session
// that is no longer active are dropped, as is anything after done or error
// other than the closing End.
func (m *Manager) dispatch(ctx context.Context, t *turn, ev stream.Event) {
	if !m.isActive(t.sess) {
		m.logger.Debug("Dropping event for inactive session", "session_id", t.sess.ID, "event_type", ev.Kind())
		return
	}
	if t.finished && ev.Kind() != stream.KindEnd {
		return
	}
	h, ok := handlers[ev.Kind()]
	if !ok {
		m.logger.Debug("No handler for event", "event_type", ev.Kind())
		return
	}
	h(m, ctx, t, ev)
}

func (m *Manager) onMessageStart(_ context.Context, t *turn, ev stream.Event) {
	e := ev.(stream.MessageStart)
	id := e.MessageID
	if id == "" {
		id = uuid.NewString()
	}
	t.sess.mu.Lock()
	prev := t.sess.streaming
	t.sess.streaming = &streamingMessage{msg: models.Message{ID: id, Role: models.RoleAssistant, CreatedAt: time.Now()}}
	t.sess.mu.Unlock()
	m.flushStreaming(t, prev)
}

func (m *Manager) onContentDelta(_ context.Context, t *turn, ev stream.Event) {
	e := ev.(stream.ContentDelta)
	if e.Delta == "" {
		return
	}
	sess := t.sess

	sess.mu.Lock()
	if sess.streaming == nil {
		sess.streaming = &streamingMessage{msg: models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, CreatedAt: time.Now()}}
	}
	sm := sess.streaming
	materialize := !sm.visible
	sm.visible = true
	sm.buf.WriteString(e.Delta)
	msg := sm.msg
	content := sm.buf.String()
	sess.mu.Unlock()

	if materialize {
		m.hidePlaceholders(sess)
		m.publisher.Publish(sess.ID, events.MessageCreatedPayload{Message: msg, Streaming: true})
	}
	m.publisher.Publish(sess.ID, events.MessageDeltaPayload{MessageID: msg.ID, Delta: e.Delta, Content: content})
}

func (m *Manager) onSuggestion(_ context.Context, t *turn, ev stream.Event) {
	t.sess.Suggestions.Receive(ev.(stream.SuggestionReceived).Suggestion)
}

func (m *Manager) onUsage(_ context.Context, t *turn, ev stream.Event) {
	tokens := ev.(stream.Usage).Tokens
	t.usage.Add(tokens)
	t.sess.mu.Lock()
	t.sess.usage.Add(tokens)
	total := t.sess.usage
	t.sess.mu.Unlock()
	m.publisher.Publish(t.sess.ID, events.UsagePayload{Turn: t.usage, Total: total})
}

func (m *Manager) onBalanceUpdate(ctx context.Context, _ *turn, ev stream.Event) {
	m.balance.Update(ctx, ev.(stream.BalanceUpdate).NewBalance)
}

func (m *Manager) onMessageEnd(_ context.Context, t *turn, ev stream.Event) {
	e := ev.(stream.MessageEnd)
	sess := t.sess

	sess.mu.Lock()
	sm := sess.streaming
	sess.streaming = nil
	sess.mu.Unlock()

	var msg models.Message
	content := e.Content
	if sm != nil {
		msg = sm.msg
		if sm.buf.Len() > 0 {
			content = sm.buf.String()
		}
	} else {
		msg = models.Message{ID: e.MessageID, Role: models.RoleAssistant, CreatedAt: time.Now()}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
	}
	msg.Content = content
	m.complete(t, msg)
}

// complete adds a finished assistant message to the transcript.
func (m *Manager) complete(t *turn, msg models.Message) {
	if msg.Content == "" {
		return
	}
	if t.usage.Total() > 0 {
		usage := t.usage
		msg.Usage = &usage
	}
	_, options := format.ParseOptions(msg.Content)

	t.sess.mu.Lock()
	t.sess.messages = append(t.sess.messages, msg)
	t.sess.options = options
	t.sess.mu.Unlock()

	m.hidePlaceholders(t.sess)
	m.publishCompleted(t.sess, msg)
}

func (m *Manager) onDataRequest(_ context.Context, t *turn, ev stream.Event) {
	e := ev.(stream.DataRequest)
	t.requests = append(t.requests, e.Requests...)
	if e.InterimMessage != "" {
		m.setStatus(t.sess, e.InterimMessage)
	}
}

func (m *Manager) onToolProcessing(_ context.Context, t *turn, ev stream.Event) {
	m.setStatus(t.sess, ev.(stream.ToolProcessing).Message)
}

func (m *Manager) onImageGenerating(_ context.Context, t *turn, ev stream.Event) {
	text := ev.(stream.ImageGenerating).Message
	t.sess.mu.Lock()
	t.sess.imagePending = true
	t.sess.mu.Unlock()
	m.publisher.Publish(t.sess.ID, events.ImagePlaceholderPayload{Visible: true, Text: text})
}

func (m *Manager) onImageGenerated(_ context.Context, t *turn, ev stream.Event) {
	img := ev.(stream.ImageGenerated).Image
	sess := t.sess

	sess.mu.Lock()
	sess.images = append(sess.images, img)
	hide := sess.imagePending
	sess.imagePending = false
	ref := sess.ref
	sess.mu.Unlock()

	if hide {
		m.publisher.Publish(sess.ID, events.ImagePlaceholderPayload{Visible: false})
	}
	m.publisher.Publish(sess.ID, events.ImageGeneratedPayload{Image: img, Actions: img.ActionsFor(ref)})
}

func (m *Manager) onCatalogSuggestion(_ context.Context, t *turn, ev stream.Event) {
	p := ev.(stream.CatalogSuggestion).Proposal
	t.sess.mu.Lock()
	t.sess.proposals = append(t.sess.proposals, p)
	t.sess.mu.Unlock()
	m.publisher.Publish(t.sess.ID, events.CatalogProposalPayload{Proposal: p})
}

func (m *Manager) onResearchConfirmation(_ context.Context, t *turn, ev stream.Event) {
	msg := ev.(stream.ResearchConfirmation).Message
	t.sess.mu.Lock()
	t.sess.confirmation = msg
	t.sess.mu.Unlock()
	m.hidePlaceholders(t.sess)
	m.publisher.Publish(t.sess.ID, events.ResearchConfirmationPayload{Message: msg})
}

func (m *Manager) onDone(_ context.Context, t *turn, _ stream.Event) {
	t.finished = true
	if t.stop != nil {
		t.stop()
	}
}

func (m *Manager) onError(_ context.Context, t *turn, ev stream.Event) {
	e := ev.(stream.Error)
	t.failure = &StreamError{Message: e.Message, Code: e.Code}
	t.finished = true
	if t.stop != nil {
		t.stop()
	}
}

// onEnd closes the exchange. A stream cut short before done is a transport
// failure; text streamed so far is kept either way.
func (m *Manager) onEnd(ctx context.Context, t *turn, ev stream.Event) {
	e := ev.(stream.End)
	if e.Err != nil && !t.finished && ctx.Err() == nil {
		t.cutShort = e.Err
	}

	t.sess.mu.Lock()
	sm := t.sess.streaming
	t.sess.streaming = nil
	t.sess.mu.Unlock()
	m.flushStreaming(t, sm)
}

// flushStreaming completes a message whose end never arrived, keeping
// whatever text was streamed so far.
func (m *Manager) flushStreaming(t *turn, sm *streamingMessage) {
	if sm == nil || sm.buf.Len() == 0 {
		return
	}
	msg := sm.msg
	msg.Content = sm.buf.String()
	m.complete(t, msg)
}

func (m *Manager) onUnknown(_ context.Context, _ *turn, ev stream.Event) {
	m.logger.Debug("Ignoring unknown stream event", "type", ev.(stream.Unknown).Type)
}

func (m *Manager) setStatus(sess *Session, text string) {
	sess.mu.Lock()
	sess.status = text
	thinking := sess.thinking
	sess.thinking = false
	sess.mu.Unlock()
	if thinking {
		m.publisher.Publish(sess.ID, events.ThinkingPayload{Visible: false})
	}
	m.publisher.Publish(sess.ID, events.StatusPayload{Text: text})
}

// hidePlaceholders removes whichever transient indicators are showing.
func (m *Manager) hidePlaceholders(sess *Session) {
	sess.mu.Lock()
	thinking, status, image := sess.thinking, sess.status != "", sess.imagePending
	sess.thinking, sess.status, sess.imagePending = false, "", false
	sess.mu.Unlock()

	if thinking {
		m.publisher.Publish(sess.ID, events.ThinkingPayload{Visible: false})
	}
	if status {
		m.publisher.Publish(sess.ID, events.StatusPayload{Text: ""})
	}
	if image {
		m.publisher.Publish(sess.ID, events.ImagePlaceholderPayload{Visible: false})
	}
}
