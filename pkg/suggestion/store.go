// Package suggestion tracks AI-proposed field edits for one session. Apply
// and discard are two-phase: the remote session record is updated first and
// local state changes only after it confirms.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/codeready-toolchain/storeassist/pkg/events"
	"github.com/codeready-toolchain/storeassist/pkg/format"
	"github.com/codeready-toolchain/storeassist/pkg/host"
	"github.com/codeready-toolchain/storeassist/pkg/models"
	"github.com/codeready-toolchain/storeassist/pkg/remote"
)

// ErrNotFound is returned by Apply for an id that is not pending.
var ErrNotFound = errors.New("suggestion not found")

// Remote is the part of the session REST surface the store needs.
type Remote interface {
	UpdateSuggestion(ctx context.Context, sessionID, suggestionID string, action remote.SuggestionAction) error
}

// GroupKey identifies the field a group of suggestions competes for.
type GroupKey struct {
	Entity models.EntityRef
	Field  string
}

// Group is the set of pending suggestions targeting the same field of the
// same entity, in arrival order.
type Group struct {
	Key          GroupKey
	CurrentValue any
	Suggestions  []models.Suggestion
}

// OptionsLabel returns "1 option" or "N options".
func (g Group) OptionsLabel() string {
	return format.OptionsLabel(len(g.Suggestions))
}

// Store holds the pending suggestions of one session.
type Store struct {
	sessionID string
	remote    Remote
	fields    host.FieldUpdater
	publisher events.Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	entity  *models.Entity
	pending map[string]*models.Suggestion
	order   []string
}

// NewStore creates a store for sessionID bound to entity. The store keeps
// its own copy of the entity and updates it when suggestions are applied.
// fields may be nil, in which case applied values are not persisted.
func NewStore(sessionID string, entity *models.Entity, rem Remote, fields host.FieldUpdater, publisher events.Publisher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.Discard
	}
	cp := models.Entity{Type: models.EntityTypeAgent}
	if entity != nil {
		cp = *entity
		cp.Fields = make(map[string]any, len(entity.Fields))
		for k, v := range entity.Fields {
			cp.Fields[k] = v
		}
	}
	return &Store{
		sessionID: sessionID,
		remote:    rem,
		fields:    fields,
		publisher: publisher,
		logger:    logger.With("component", "suggestions", "session_id", sessionID),
		entity:    &cp,
		pending:   make(map[string]*models.Suggestion),
	}
}

// Entity returns a copy of the session's entity snapshot.
func (s *Store) Entity() models.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.entity
	cp.Fields = make(map[string]any, len(s.entity.Fields))
	for k, v := range s.entity.Fields {
		cp.Fields[k] = v
	}
	return cp
}

// Receive adds a suggestion to the pending map and publishes it with its
// group. A suggestion with a known id replaces the earlier one in place.
func (s *Store) Receive(sg models.Suggestion) {
	if sg.ID == "" || sg.Field == "" {
		s.logger.Warn("Ignoring suggestion without id or field", "suggestion_id", sg.ID, "field", sg.Field)
		return
	}
	if sg.Status != "" && sg.Status != models.SuggestionPending {
		s.logger.Debug("Ignoring resolved suggestion", "suggestion_id", sg.ID, "status", sg.Status)
		return
	}
	sg.Status = models.SuggestionPending

	s.mu.Lock()
	key := s.keyLocked(&sg)
	if sg.CurrentValue == nil && key.Entity == s.entity.Ref() {
		sg.CurrentValue = s.entity.Fields[sg.Field]
	}
	if _, exists := s.pending[sg.ID]; !exists {
		s.order = append(s.order, sg.ID)
	}
	stored := sg
	s.pending[sg.ID] = &stored
	size := len(s.groupMembersLocked(key))
	s.mu.Unlock()

	payload := events.SuggestionAddedPayload{
		Suggestion:   sg,
		Entity:       key.Entity,
		FieldLabel:   format.FieldLabel(sg.Field),
		GroupSize:    size,
		OptionsLabel: format.OptionsLabel(size),
	}
	if models.IsListField(sg.Field) {
		payload.Added, payload.Removed = format.DiffList(sg.CurrentValue, sg.SuggestedValue)
	}
	s.publisher.Publish(s.sessionID, payload)
	if size == 1 {
		s.publisher.Publish(s.sessionID, events.FieldPendingPayload{Entity: key.Entity, Field: sg.Field, Pending: true})
	}
}

// Apply applies the suggestion remotely and, once confirmed, writes the
// value into the entity snapshot, persists it through the host and
// resolves the whole group. Siblings are discarded remotely on a
// best-effort basis. On remote failure nothing changes locally.
//
// If the host fails to persist the value, the suggestion is still resolved
// (the remote record already says applied) and the error is returned.
func (s *Store) Apply(ctx context.Context, id string) error {
	s.mu.Lock()
	sg, ok := s.pending[id]
	var chosen models.Suggestion
	if ok {
		chosen = *sg
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("apply suggestion %s: %w", id, ErrNotFound)
	}

	if err := s.remote.UpdateSuggestion(ctx, s.sessionID, id, remote.ActionApply); err != nil {
		s.logger.Warn("Failed to apply suggestion", "suggestion_id", id, "error", err)
		return fmt.Errorf("apply suggestion %s: %w", id, err)
	}

	value := format.NormalizeValue(chosen.Field, chosen.SuggestedValue)

	s.mu.Lock()
	key := s.keyLocked(&chosen)
	if key.Entity == s.entity.Ref() {
		s.entity.SetField(chosen.Field, value)
	}
	var siblings []string
	for _, m := range s.groupMembersLocked(key) {
		if m.ID != id {
			siblings = append(siblings, m.ID)
		}
	}
	s.mu.Unlock()

	var persistErr error
	if s.fields != nil {
		if err := s.fields.UpdateField(ctx, key.Entity, chosen.Field, value); err != nil {
			s.logger.Warn("Failed to save applied field",
				"suggestion_id", id, "entity", key.Entity.String(), "field", chosen.Field, "error", err)
			persistErr = fmt.Errorf("save %s of %s: %w", chosen.Field, key.Entity, err)
		}
	}

	for _, sib := range siblings {
		if err := s.remote.UpdateSuggestion(ctx, s.sessionID, sib, remote.ActionDiscard); err != nil {
			s.logger.Warn("Failed to discard sibling suggestion", "suggestion_id", sib, "error", err)
		}
	}

	s.resolve(id, models.SuggestionApplied)
	for _, sib := range siblings {
		s.resolve(sib, models.SuggestionDiscarded)
	}
	s.publishFieldCleared(key)
	return persistErr
}

// Discard discards the suggestion remotely and removes it once confirmed.
// Unknown ids are ignored.
func (s *Store) Discard(ctx context.Context, id string) error {
	s.mu.Lock()
	sg, ok := s.pending[id]
	var key GroupKey
	if ok {
		key = s.keyLocked(sg)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := s.remote.UpdateSuggestion(ctx, s.sessionID, id, remote.ActionDiscard); err != nil {
		s.logger.Warn("Failed to discard suggestion", "suggestion_id", id, "error", err)
		return fmt.Errorf("discard suggestion %s: %w", id, err)
	}

	s.resolve(id, models.SuggestionDiscarded)
	s.publishFieldCleared(key)
	return nil
}

// ApplyAll applies the pending suggestions one at a time in arrival order.
// Each is independent; the first member of each group wins and resolves
// its siblings. Errors are joined.
func (s *Store) ApplyAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.ids() {
		if !s.Has(id) {
			continue
		}
		if err := s.Apply(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DiscardAll discards every pending suggestion independently.
func (s *Store) DiscardAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.ids() {
		if err := s.Discard(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Has reports whether id is pending.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// Len returns the number of pending suggestions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Pending returns the pending suggestions in arrival order.
func (s *Store) Pending() []models.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Suggestion, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.pending[id])
	}
	return out
}

// Groups returns the pending suggestions grouped by target field, ordered
// by the arrival of each group's first member.
func (s *Store) Groups() []Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups []Group
	index := make(map[GroupKey]int)
	for _, id := range s.order {
		sg := s.pending[id]
		key := s.keyLocked(sg)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, CurrentValue: sg.CurrentValue})
		}
		groups[i].Suggestions = append(groups[i].Suggestions, *sg)
	}
	return groups
}

// PendingFields returns the fields of the session entity that have a
// pending change.
func (s *Store) PendingFields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := s.entity.Ref()
	var fields []string
	for _, id := range s.order {
		sg := s.pending[id]
		if sg.Target(ref) == ref && !slices.Contains(fields, sg.Field) {
			fields = append(fields, sg.Field)
		}
	}
	return fields
}

// Clear drops every pending suggestion without contacting the remote.
func (s *Store) Clear() {
	s.mu.Lock()
	s.pending = make(map[string]*models.Suggestion)
	s.order = nil
	s.mu.Unlock()
}

func (s *Store) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

func (s *Store) resolve(id string, status models.SuggestionStatus) {
	s.mu.Lock()
	_, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
		s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	}
	s.mu.Unlock()
	if ok {
		s.publisher.Publish(s.sessionID, events.SuggestionResolvedPayload{SuggestionID: id, Status: status})
	}
}

// publishFieldCleared clears the pending indicator once no suggestion
// targets the field any more.
func (s *Store) publishFieldCleared(key GroupKey) {
	s.mu.Lock()
	remaining := len(s.groupMembersLocked(key))
	s.mu.Unlock()
	if remaining == 0 {
		s.publisher.Publish(s.sessionID, events.FieldPendingPayload{Entity: key.Entity, Field: key.Field, Pending: false})
	}
}

func (s *Store) keyLocked(sg *models.Suggestion) GroupKey {
	return GroupKey{Entity: sg.Target(s.entity.Ref()), Field: sg.Field}
}

func (s *Store) groupMembersLocked(key GroupKey) []*models.Suggestion {
	var members []*models.Suggestion
	for _, id := range s.order {
		sg := s.pending[id]
		if s.keyLocked(sg) == key {
			members = append(members, sg)
		}
	}
	return members
}
