// Package session owns the active conversation: it creates and loads
// sessions, runs message turns against the remote service, dispatches stream
// events and routes user actions to the suggestion, attachment and media
// collaborators.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/storeassist/pkg/attachment"
	"github.com/codeready-toolchain/storeassist/pkg/balance"
	"github.com/codeready-toolchain/storeassist/pkg/config"
	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/format"
	"github.com/codeready-toolchain/storeassist/pkg/host"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/remote"
	"github.com/codeready-toolchain/storeassist/pkg/suggestion"
	"github.com/codeready-toolchain/storeassist/pkg/tools"
)

// Remote is the part of the remote service the manager talks to.
// *remote.Client implements it.
type Remote interface {
	CreateSession(ctx context.Context, req *remote.CreateSessionRequest) (string, error)
	GetSession(ctx context.Context, sessionID string) (*remote.SessionHistory, error)
	SendMessage(ctx context.Context, sessionID string, msg *remote.MessageRequest) (*remote.Reply, error)
	UpdateSuggestion(ctx context.Context, sessionID, suggestionID string, action remote.SuggestionAction) error
}

// Options configures a Manager. Config, Publisher, Previews and Logger
// fall back to defaults when nil.
type Options struct {
	Config    *config.Config
	Remote    Remote
	Host      host.Host
	Publisher events.Publisher
	Store     models.StoreContext
	Previews  *attachment.Previews
	Logger    *slog.Logger
}

// Manager manages the active session. At most one turn (a send or a session
// creation) runs at a time.
type Manager struct {
	cfg         *config.Config
	remote      Remote
	host        host.Host
	publisher   events.Publisher
	store       models.StoreContext
	tools       *tools.Coordinator
	balance     *balance.Tracker
	attachments *attachment.Pipeline
	logger      *slog.Logger

	mu         sync.Mutex
	active     *Session
	busy       bool
	cancelTurn context.CancelFunc
	turnDone   chan struct{}
	closed     bool
}

// NewManager creates a manager and loads the last known balance.
func NewManager(ctx context.Context, opts Options) *Manager {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Discard
	}
	previews := opts.Previews
	if previews == nil {
		previews = attachment.NewPreviews()
	}

	m := &Manager{
		cfg:         cfg,
		remote:      opts.Remote,
		host:        opts.Host,
		publisher:   publisher,
		store:       opts.Store,
		tools:       tools.NewCoordinator(opts.Host.Tools, logger),
		balance:     balance.NewTracker(cfg.Balance, opts.Host.Balance, publisher, logger),
		attachments: attachment.NewPipeline(cfg.Attachments, previews, logger),
		logger:      logger.With("component", "session"),
	}
	if err := m.balance.Load(ctx); err != nil {
		m.logger.Warn("Failed to load stored balance", "error", err)
	}
	return m
}

// Active returns the active session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Busy reports whether a turn is in flight.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Previews returns the preview registry of the attachment pipeline.
func (m *Manager) Previews() *attachment.Previews {
	return m.attachments.Previews()
}

// SelectEntity switches the conversation to entity. The in-flight turn of
// the previous session is canceled and its late events are dropped.
func (m *Manager) SelectEntity(ctx context.Context, entity *models.Entity) error {
	m.deactivate()
	return m.CreateSession(ctx, entity)
}

// NewChat starts a fresh session for the current entity.
func (m *Manager) NewChat(ctx context.Context) error {
	m.mu.Lock()
	sess := m.active
	m.mu.Unlock()
	if sess == nil {
		return ErrNoSession
	}
	entity := sess.Suggestions.Entity()
	entity.Title = sess.Title
	m.deactivate()
	return m.CreateSession(ctx, &entity)
}

// CreateSession creates a remote session bound to entity, makes it active
// and loads its history. A nil entity binds to the store-wide agent.
func (m *Manager) CreateSession(ctx context.Context, entity *models.Entity) error {
	e := models.Entity{Type: models.EntityTypeAgent}
	if entity != nil {
		e = *entity
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidEntity, e.Type)
	}

	ctx, _, end, err := m.beginTurn(ctx, false)
	if err != nil {
		return err
	}
	defer end()

	title := m.resolveTitle(ctx, &e)
	id, err := m.remote.CreateSession(ctx, remote.NewCreateSessionRequest(&e, title, m.store))
	if err != nil {
		m.logger.Error("Failed to create session", "entity", e.Ref().String(), "error", err)
		m.publisher.Publish("", events.TurnErrorPayload{Message: remote.UserMessage(err)})
		return fmt.Errorf("create session: %w", err)
	}

	sess := m.activate(id, title, &e)
	m.logger.Info("Session created", "session_id", id, "entity", e.Ref().String())
	if err := m.loadHistory(ctx, sess); err != nil {
		m.publisher.Publish(sess.ID, events.TurnErrorPayload{Message: remote.UserMessage(err)})
		return err
	}
	return nil
}

// LoadSession resumes an existing remote session for entity.
func (m *Manager) LoadSession(ctx context.Context, sessionID string, entity *models.Entity) error {
	e := models.Entity{Type: models.EntityTypeAgent}
	if entity != nil {
		e = *entity
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidEntity, e.Type)
	}
	m.deactivate()

	ctx, _, end, err := m.beginTurn(ctx, false)
	if err != nil {
		return err
	}
	defer end()

	sess := m.activate(sessionID, m.resolveTitle(ctx, &e), &e)
	if err := m.loadHistory(ctx, sess); err != nil {
		m.publisher.Publish(sess.ID, events.TurnErrorPayload{Message: remote.UserMessage(err)})
		return err
	}
	return nil
}

// LoadSessionMessages reloads the transcript and pending suggestions of the
// active session from the service.
func (m *Manager) LoadSessionMessages(ctx context.Context) error {
	ctx, sess, end, err := m.beginTurn(ctx, true)
	if err != nil {
		return err
	}
	defer end()
	if err := m.loadHistory(ctx, sess); err != nil {
		m.publisher.Publish(sess.ID, events.TurnErrorPayload{Message: remote.UserMessage(err)})
		return err
	}
	return nil
}

// AddFiles queues files for the next message. Rejected files are reported
// individually; accepted ones are queued even when others fail.
func (m *Manager) AddFiles(files []attachment.File) []attachment.Rejection {
	_, rejections := m.attachments.ProcessFiles(files)
	m.publishAttachments(rejections)
	return rejections
}

// ClearAttachments empties the compose buffer.
func (m *Manager) ClearAttachments() {
	m.attachments.Clear()
	m.publishAttachments(nil)
}

// RemoveAttachment drops one queued attachment.
func (m *Manager) RemoveAttachment(index int) bool {
	if !m.attachments.Remove(index) {
		return false
	}
	m.publishAttachments(nil)
	return true
}

// ApplySuggestion applies one pending suggestion.
func (m *Manager) ApplySuggestion(ctx context.Context, id string) error {
	return m.withSuggestions(func(s *suggestion.Store) error { return s.Apply(ctx, id) })
}

// DiscardSuggestion discards one pending suggestion.
func (m *Manager) DiscardSuggestion(ctx context.Context, id string) error {
	return m.withSuggestions(func(s *suggestion.Store) error { return s.Discard(ctx, id) })
}

// ApplyAllSuggestions applies every pending suggestion group.
func (m *Manager) ApplyAllSuggestions(ctx context.Context) error {
	return m.withSuggestions(func(s *suggestion.Store) error { return s.ApplyAll(ctx) })
}

// DiscardAllSuggestions discards every pending suggestion.
func (m *Manager) DiscardAllSuggestions(ctx context.Context) error {
	return m.withSuggestions(func(s *suggestion.Store) error { return s.DiscardAll(ctx) })
}

func (m *Manager) withSuggestions(fn func(*suggestion.Store) error) error {
	sess := m.Active()
	if sess == nil {
		return ErrNoSession
	}
	err := fn(sess.Suggestions)
	if err != nil && !errors.Is(err, suggestion.ErrNotFound) {
		m.logger.Warn("Suggestion action failed", "session_id", sess.ID, "error", err)
		m.publisher.Publish(sess.ID, events.TurnErrorPayload{Message: remote.UserMessage(err)})
	}
	return err
}

// ImageAction performs action on a generated image of the active session.
func (m *Manager) ImageAction(ctx context.Context, imageURL string, action models.ImageAction) error {
	sess := m.Active()
	if sess == nil {
		return ErrNoSession
	}
	img, ok := sess.image(imageURL)
	if !ok {
		return fmt.Errorf("%w: %s", ErrImageNotFound, imageURL)
	}
	sessionRef := sess.Ref()
	allowed := false
	for _, a := range img.ActionsFor(sessionRef) {
		if a == action {
			allowed = true
			break
		}
	}
	if !allowed || m.host.Media == nil {
		return fmt.Errorf("%w: %s", ErrActionNotAvailable, action)
	}

	target := sessionRef
	if img.EntityType != "" {
		target = models.EntityRef{Type: img.EntityType, ID: img.EntityID}
	}

	var (
		err    error
		status string
	)
	switch action {
	case models.ImageActionSaveToLibrary:
		_, err = m.host.Media.SaveToLibrary(ctx, img.URL)
		status = "Image saved to the media library"
	case models.ImageActionSetFeatured:
		err = m.host.Media.SetFeaturedImage(ctx, target.ID, img.URL)
		status = "Featured image updated"
	case models.ImageActionSetThumbnail:
		err = m.host.Media.SetCategoryThumbnail(ctx, target.ID, img.URL)
		status = "Category thumbnail updated"
	}
	if err != nil {
		m.logger.Warn("Image action failed", "action", action, "url", img.URL, "error", err)
		m.publisher.Publish(sess.ID, events.TurnErrorPayload{Message: remote.MsgGeneric})
		return fmt.Errorf("image action %s: %w", action, err)
	}
	m.publisher.Publish(sess.ID, events.StatusPayload{Text: status})
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	sess, busy := m.active, m.busy
	m.mu.Unlock()

	var st State
	if sess != nil {
		sess.clone(&st)
		st.Entity = sess.Suggestions.Entity()
		st.Groups = sess.Suggestions.Groups()
		st.PendingFields = sess.Suggestions.PendingFields()
	}
	st.Busy = busy
	st.Attachments = m.attachments.Pending()
	st.Balance, st.BalanceKnown = m.balance.Displayed()
	return st
}

// Close cancels the in-flight turn, waits for balance persistence and
// releases queued attachments.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.deactivate()
	m.balance.Wait()
	m.attachments.Clear()
}

// beginTurn marks the manager busy. The returned context is canceled when a
// new entity is selected; end must be called exactly once.
func (m *Manager) beginTurn(ctx context.Context, needSession bool) (context.Context, *Session, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, nil, ErrClosed
	}
	if needSession && m.active == nil {
		return nil, nil, nil, ErrNoSession
	}
	if m.busy {
		return nil, nil, nil, ErrBusy
	}
	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.busy, m.cancelTurn, m.turnDone = true, cancel, done
	end := func() {
		m.mu.Lock()
		m.busy, m.cancelTurn, m.turnDone = false, nil, nil
		m.mu.Unlock()
		cancel()
		close(done)
	}
	return turnCtx, m.active, end, nil
}

// deactivate drops the active session, cancels its turn and waits for the
// turn to unwind.
func (m *Manager) deactivate() {
	m.mu.Lock()
	prev := m.active
	m.active = nil
	cancel, done := m.cancelTurn, m.turnDone
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if prev != nil {
		m.logger.Debug("Session deactivated", "session_id", prev.ID)
	}
}

func (m *Manager) activate(id, title string, entity *models.Entity) *Session {
	sess := &Session{
		ID:          id,
		Title:       title,
		ref:         entity.Ref(),
		Suggestions: suggestion.NewStore(id, entity, m.remote, m.host.Fields, m.publisher, m.logger),
	}
	m.mu.Lock()
	m.active = sess
	m.mu.Unlock()

	hadFiles := len(m.attachments.Pending()) > 0
	m.attachments.Clear()
	if hadFiles {
		m.publishAttachments(nil)
	}
	m.publisher.Publish(id, events.SessionChangedPayload{SessionID: id, Entity: sess.ref, Title: title})
	return sess
}

func (m *Manager) isActive(sess *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active == sess
}

// resolveTitle picks the session title: the entity title, a category name
// from the host, or the configured default.
func (m *Manager) resolveTitle(ctx context.Context, e *models.Entity) string {
	if e.Title != "" {
		return e.Title
	}
	if e.Type == models.EntityTypeCategory && e.ID != "" && m.host.Categories != nil {
		name, err := m.host.Categories.CategoryName(ctx, e.ID)
		if err != nil {
			m.logger.Debug("Category name lookup failed", "category_id", e.ID, "error", err)
		} else if name != "" {
			e.Title = name
			return name
		}
	}
	return m.cfg.Conversation.DefaultTitle
}

func (m *Manager) loadHistory(ctx context.Context, sess *Session) error {
	history, err := m.remote.GetSession(ctx, sess.ID)
	if err != nil {
		m.logger.Warn("Failed to load session history", "session_id", sess.ID, "error", err)
		return fmt.Errorf("load session %s: %w", sess.ID, err)
	}
	if !m.isActive(sess) {
		return nil
	}

	var options []string
	sess.mu.Lock()
	sess.messages = history.Messages
	sess.streaming = nil
	for i := len(history.Messages) - 1; i >= 0; i-- {
		if history.Messages[i].Role == models.RoleAssistant {
			_, options = format.ParseOptions(history.Messages[i].Content)
			break
		}
	}
	sess.options = options
	sess.mu.Unlock()

	for _, msg := range history.Messages {
		m.publishCompleted(sess, msg)
	}
	sess.Suggestions.Clear()
	for _, sg := range history.PendingSuggestions {
		sess.Suggestions.Receive(sg)
	}
	m.logger.Debug("Session history loaded", "session_id", sess.ID,
		"messages", len(history.Messages), "suggestions", sess.Suggestions.Len())
	return nil
}

func (m *Manager) publishAttachments(rejections []attachment.Rejection) {
	pending := m.attachments.Pending()
	p := events.AttachmentsChangedPayload{
		Filenames: make([]string, len(pending)),
		Remaining: m.attachments.Remaining(),
	}
	for i, a := range pending {
		p.Filenames[i] = a.Filename
	}
	for _, r := range rejections {
		p.Rejections = append(p.Rejections, r.Error())
	}
	sessionID := ""
	if sess := m.Active(); sess != nil {
		sessionID = sess.ID
	}
	m.publisher.Publish(sessionID, p)
}

// publishCompleted renders msg and announces it.
func (m *Manager) publishCompleted(sess *Session, msg models.Message) {
	p := events.MessageCompletedPayload{Message: msg}
	if msg.Role == models.RoleAssistant {
		html, options, err := format.RenderMarkdown(msg.Content)
		if err != nil {
			m.logger.Warn("Failed to render message", "message_id", msg.ID, "error", err)
		}
		p.HTML, p.Options = html, options
	}
	m.publisher.Publish(sess.ID, p)
}
