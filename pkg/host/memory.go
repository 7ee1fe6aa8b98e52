package host

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// FieldUpdate records one UpdateField call.
type FieldUpdate struct {
	Ref   models.EntityRef
	Field string
	Value any
}

// MediaCall records one MediaLibrary call.
type MediaCall struct {
	Action   models.ImageAction
	EntityID string
	URL      string
}

// Memory is an in-process host used by the developer console and tests.
// Every call is recorded; Fail* fields inject errors.
type Memory struct {
	mu sync.Mutex

	entities   map[models.EntityRef]*models.Entity
	categories map[string]string
	balance    *float64

	FieldUpdates []FieldUpdate
	MediaCalls   []MediaCall
	BalanceSaves []float64

	FailFieldUpdate error
	FailMedia       error
	FailBalance     error
}

var (
	_ FieldUpdater   = (*Memory)(nil)
	_ CategoryLookup = (*Memory)(nil)
	_ MediaLibrary   = (*Memory)(nil)
	_ BalanceStore   = (*Memory)(nil)
)

// NewMemory creates an empty in-memory host.
func NewMemory() *Memory {
	return &Memory{
		entities:   make(map[models.EntityRef]*models.Entity),
		categories: make(map[string]string),
	}
}

// Host returns a Host backed by m, with tools as the tool executor.
func (m *Memory) Host(tools ToolExecutor) Host {
	return Host{Fields: m, Categories: m, Media: m, Tools: tools, Balance: m}
}

// PutEntity stores a copy of e and, for categories, registers its name.
func (m *Memory) PutEntity(e *models.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.Fields = make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	m.entities[e.Ref()] = &cp
	if e.Type == models.EntityTypeCategory && e.Title != "" {
		m.categories[e.ID] = e.Title
	}
}

// Entity returns a copy of the stored entity.
func (m *Memory) Entity(ref models.EntityRef) (*models.Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[ref]
	if !ok {
		return nil, false
	}
	cp := *e
	cp.Fields = make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		cp.Fields[k] = v
	}
	return &cp, true
}

// UpdateField implements FieldUpdater.
func (m *Memory) UpdateField(_ context.Context, ref models.EntityRef, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFieldUpdate != nil {
		return m.FailFieldUpdate
	}
	m.FieldUpdates = append(m.FieldUpdates, FieldUpdate{Ref: ref, Field: field, Value: value})
	e, ok := m.entities[ref]
	if !ok {
		e = &models.Entity{Type: ref.Type, ID: ref.ID}
		m.entities[ref] = e
	}
	e.SetField(field, value)
	return nil
}

// SetCategoryName registers a category name for lookups.
func (m *Memory) SetCategoryName(id, name string) {
	m.mu.Lock()
	m.categories[id] = name
	m.mu.Unlock()
}

// CategoryName implements CategoryLookup.
func (m *Memory) CategoryName(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.categories[id]
	if !ok {
		return "", fmt.Errorf("category %s not found", id)
	}
	return name, nil
}

// SaveToLibrary implements MediaLibrary.
func (m *Memory) SaveToLibrary(_ context.Context, imageURL string) (string, error) {
	return m.recordMedia(models.ImageActionSaveToLibrary, "", imageURL)
}

// SetFeaturedImage implements MediaLibrary.
func (m *Memory) SetFeaturedImage(_ context.Context, productID, imageURL string) error {
	_, err := m.recordMedia(models.ImageActionSetFeatured, productID, imageURL)
	return err
}

// SetCategoryThumbnail implements MediaLibrary.
func (m *Memory) SetCategoryThumbnail(_ context.Context, categoryID, imageURL string) error {
	_, err := m.recordMedia(models.ImageActionSetThumbnail, categoryID, imageURL)
	return err
}

func (m *Memory) recordMedia(action models.ImageAction, entityID, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMedia != nil {
		return "", m.FailMedia
	}
	m.MediaCalls = append(m.MediaCalls, MediaCall{Action: action, EntityID: entityID, URL: url})
	return uuid.NewString(), nil
}

// LoadBalance implements BalanceStore.
func (m *Memory) LoadBalance(context.Context) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balance == nil {
		return 0, false, nil
	}
	return *m.balance, true, nil
}

// SaveBalance implements BalanceStore.
func (m *Memory) SaveBalance(_ context.Context, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailBalance != nil {
		return m.FailBalance
	}
	m.BalanceSaves = append(m.BalanceSaves, balance)
	m.balance = &balance
	return nil
}

// Updates returns a copy of the recorded field updates.
func (m *Memory) Updates() []FieldUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.FieldUpdates)
}

// Saves returns a copy of the recorded balance saves.
func (m *Memory) Saves() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.BalanceSaves)
}

// Media returns a copy of the recorded media calls.
func (m *Memory) Media() []MediaCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.MediaCalls)
}
