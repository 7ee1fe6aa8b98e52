package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/remote"
	"github.com/codeready-toolchain/storeassist/pkg/stream"
)

// Answers sent for a research confirmation.
const (
	AnswerYes = "Yes"
	AnswerNo  = "No"
)

// turn is the bookkeeping of one exchange with the service: one request and
// the stream (or JSON reply) answering it.
type turn struct {
	sess *Session
	// stop ends the stream read after done or error.
	stop     context.CancelFunc
	requests []models.ToolRequest
	usage    models.TokenUsage
	finished bool
	failure  error
	cutShort error
}

// SendMessage sends content (and any queued attachments) and blocks until
// the reply, including every tool round, has been processed. quickActionID
// may be empty.
func (m *Manager) SendMessage(ctx context.Context, content, quickActionID string) error {
	run, err := m.StartSend(ctx, content, quickActionID)
	if err != nil {
		return err
	}
	return run()
}

// StartSend claims the turn for content and returns the function that runs
// it. Busy, missing session and empty input are reported here, before
// anything is sent. The returned run must be called exactly once; the
// manager stays busy until it returns.
func (m *Manager) StartSend(ctx context.Context, content, quickActionID string) (run func() error, err error) {
	content = strings.TrimSpace(content)
	if content == "" && quickActionID == "" && len(m.attachments.Pending()) == 0 {
		return nil, ErrEmptyMessage
	}

	ctx, sess, end, err := m.beginTurn(ctx, true)
	if err != nil {
		return nil, err
	}
	return func() error {
		defer end()
		return m.send(ctx, sess, content, quickActionID)
	}, nil
}

func (m *Manager) send(ctx context.Context, sess *Session, content, quickActionID string) error {
	attachments := m.attachments.Take()
	user := models.Message{
		ID:          uuid.NewString(),
		Role:        models.RoleUser,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   time.Now(),
	}
	sess.mu.Lock()
	sess.messages = append(sess.messages, user)
	sess.options = nil
	sess.confirmation = ""
	sess.thinking = true
	sess.mu.Unlock()

	m.publisher.Publish(sess.ID, events.MessageCreatedPayload{Message: user})
	if len(attachments) > 0 {
		m.publishAttachments(nil)
	}
	m.publisher.Publish(sess.ID, events.ThinkingPayload{Visible: true})

	req := &remote.MessageRequest{Content: content, QuickAction: quickActionID, Attachments: attachments}
	err := m.runTurn(ctx, sess, req)
	m.finishTurn(sess, err)
	return err
}

// SelectOption sends the quick option at index as the next message.
func (m *Manager) SelectOption(ctx context.Context, index int) error {
	run, err := m.StartOption(ctx, index)
	if err != nil {
		return err
	}
	return run()
}

// StartOption is SelectOption split like StartSend.
func (m *Manager) StartOption(ctx context.Context, index int) (run func() error, err error) {
	sess := m.Active()
	if sess == nil {
		return nil, ErrNoSession
	}
	options := sess.Options()
	if index < 0 || index >= len(options) {
		return nil, fmt.Errorf("%w: %d", ErrNoOption, index)
	}
	return m.StartSend(ctx, options[index], "")
}

// AnswerConfirmation answers the pending research question.
func (m *Manager) AnswerConfirmation(ctx context.Context, yes bool) error {
	run, err := m.StartConfirmation(ctx, yes)
	if err != nil {
		return err
	}
	return run()
}

// StartConfirmation is AnswerConfirmation split like StartSend.
func (m *Manager) StartConfirmation(ctx context.Context, yes bool) (run func() error, err error) {
	answer := AnswerNo
	if yes {
		answer = AnswerYes
	}
	return m.StartSend(ctx, answer, "")
}

// runTurn sends req and keeps answering data requests until the service
// stops asking or the round limit is hit. Rounds are strictly sequential.
func (m *Manager) runTurn(ctx context.Context, sess *Session, req *remote.MessageRequest) error {
	maxRounds := m.cfg.Conversation.MaxToolRounds
	for round := 0; ; round++ {
		t := &turn{sess: sess}
		if err := m.exchange(ctx, t, req); err != nil {
			return err
		}
		if len(t.requests) == 0 {
			return nil
		}
		if round >= maxRounds {
			m.logger.Warn("Tool round limit reached", "session_id", sess.ID, "max_tool_rounds", maxRounds)
			return fmt.Errorf("%w: limit is %d", ErrTooManyToolRounds, maxRounds)
		}

		m.logger.Debug("Answering data request", "session_id", sess.ID, "round", round+1, "requests", len(t.requests))
		results, err := m.tools.Handle(ctx, t.requests)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrToolData, err)
		}
		req = remote.ToolResultsRequest(results)
	}
}

// exchange sends one request and dispatches its reply.
func (m *Manager) exchange(ctx context.Context, t *turn, req *remote.MessageRequest) error {
	reply, err := m.remote.SendMessage(ctx, t.sess.ID, req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer func() {
		if err := reply.Close(); err != nil {
			m.logger.Debug("Failed to close reply", "error", err)
		}
	}()

	switch {
	case reply.Stream != nil:
		streamCtx, stop := context.WithCancel(ctx)
		defer stop()
		t.stop = stop
		_ = stream.Read(streamCtx, reply.Stream, m.logger, func(ev stream.Event) {
			m.dispatch(ctx, t, ev)
		})
	case reply.JSON != nil:
		for _, ev := range replyEvents(reply.JSON) {
			m.dispatch(ctx, t, ev)
		}
	default:
		return fmt.Errorf("send message: %w: empty reply", remote.ErrMalformedResponse)
	}

	if t.failure != nil {
		return t.failure
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.cutShort
}

// replyEvents converts a non-streaming reply into the events a stream would
// have carried, so both paths share one dispatcher.
func replyEvents(resp *remote.MessageResponse) []stream.Event {
	var evs []stream.Event
	if msg := resp.AssistantMessage; msg != nil {
		id := msg.ID
		if id == "" {
			id = uuid.NewString()
		}
		evs = append(evs, stream.MessageStart{MessageID: id})
		if msg.Content != "" {
			evs = append(evs, stream.ContentDelta{Delta: msg.Content})
		}
		evs = append(evs, stream.MessageEnd{MessageID: id, Content: msg.Content})
	}
	for _, sg := range resp.Suggestions {
		evs = append(evs, stream.SuggestionReceived{Suggestion: sg})
	}
	if resp.TokensUsed != nil {
		evs = append(evs, stream.Usage{Tokens: *resp.TokensUsed})
	}
	return append(evs, stream.Done{}, stream.End{})
}

// finishTurn hides placeholders, surfaces err and re-enables input. Nothing
// is published for a session that is no longer active.
func (m *Manager) finishTurn(sess *Session, err error) {
	if !m.isActive(sess) {
		m.logger.Debug("Turn ended for inactive session", "session_id", sess.ID)
		return
	}
	m.hidePlaceholders(sess)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("Turn failed", "session_id", sess.ID, "error", err)
		m.publisher.Publish(sess.ID, events.TurnErrorPayload{Message: userMessage(err)})
	}
	m.publisher.Publish(sess.ID, events.TurnDonePayload{})
}

// userMessage maps a turn failure to the text shown to the user.
func userMessage(err error) string {
	var se *StreamError
	switch {
	case errors.As(err, &se):
		if remote.IsInsufficientBalanceCode(se.Code) {
			return remote.MsgInsufficientBalance
		}
		if se.Message != "" {
			return se.Message
		}
		return remote.MsgGeneric
	case errors.Is(err, ErrToolData):
		return MsgToolData
	default:
		return remote.UserMessage(err)
	}
}
