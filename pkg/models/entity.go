// Package models contains the conversation domain types shared by the engine's
// components: entities, messages, attachments, suggestions and tool payloads.
package models

import "strings"

// EntityType identifies what a conversation is bound to.
type EntityType string

const (
	EntityTypeProduct  EntityType = "product"
	EntityTypeCategory EntityType = "category"
	// EntityTypeAgent is the store-wide mode; it has no entity id.
	EntityTypeAgent EntityType = "agent"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeProduct, EntityTypeCategory, EntityTypeAgent:
		return true
	}
	return false
}

// EntityRef is the (type, id) pair a session or suggestion targets.
type EntityRef struct {
	Type EntityType `json:"entity_type"`
	ID   string     `json:"entity_id,omitempty"`
}

// String returns "product:42", "category:7" or "agent".
func (r EntityRef) String() string {
	if r.ID == "" {
		return string(r.Type)
	}
	return string(r.Type) + ":" + r.ID
}

// Entity is the local snapshot of the commerce object a session is bound to.
// Fields holds the editable attributes keyed by field name (title,
// description, tags, seo_title, ...).
type Entity struct {
	Type   EntityType     `json:"entity_type"`
	ID     string         `json:"entity_id,omitempty"`
	Title  string         `json:"title,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Ref returns the entity's reference.
func (e *Entity) Ref() EntityRef {
	return EntityRef{Type: e.Type, ID: e.ID}
}

// Snapshot returns a copy of the entity's fields suitable for serialization.
// Slices are copied so later local edits do not leak into a sent payload.
func (e *Entity) Snapshot() map[string]any {
	out := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		switch vv := v.(type) {
		case []string:
			out[k] = append([]string(nil), vv...)
		case []any:
			out[k] = append([]any(nil), vv...)
		default:
			out[k] = v
		}
	}
	if e.ID != "" {
		out["id"] = e.ID
	}
	if e.Title != "" {
		if _, ok := out["title"]; !ok {
			out["title"] = e.Title
		}
	}
	return out
}

// SetField updates one field of the snapshot.
func (e *Entity) SetField(field string, value any) {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[field] = value
	if field == "title" {
		if s, ok := value.(string); ok {
			e.Title = s
		}
	}
}

// StoreContext carries store-wide facts sent along with a new session.
type StoreContext map[string]any

// NonEmpty returns a copy without nil values, blank strings and empty
// collections. Returns nil when nothing is left.
func (c StoreContext) NonEmpty() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		switch vv := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(vv) == "" {
				continue
			}
		case []string:
			if len(vv) == 0 {
				continue
			}
		case []any:
			if len(vv) == 0 {
				continue
			}
		case map[string]any:
			if len(vv) == 0 {
				continue
			}
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// listFields are edited as comma separated sets.
var listFields = map[string]bool{
	"tags":          true,
	"categories":    true,
	"subcategories": true,
}

// IsListField reports whether field holds a list of values rather than a scalar.
func IsListField(field string) bool {
	return listFields[field]
}
