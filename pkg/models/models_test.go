package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityTypeValid(t *testing.T) {
	for _, typ := range []EntityType{EntityTypeProduct, EntityTypeCategory, EntityTypeAgent} {
		assert.True(t, typ.Valid(), typ)
	}
	assert.False(t, EntityType("order").Valid())
	assert.False(t, EntityType("").Valid())
}

func TestEntitySnapshotIsDetached(t *testing.T) {
	e := &Entity{
		Type:   EntityTypeProduct,
		ID:     "42",
		Title:  "Mug",
		Fields: map[string]any{"tags": []string{"kitchen"}, "price": "9.99"},
	}

	snap := e.Snapshot()
	e.SetField("tags", append(e.Fields["tags"].([]string), "gift"))
	e.Fields["tags"].([]string)[0] = "changed"

	assert.Equal(t, []string{"kitchen"}, snap["tags"])
	assert.Equal(t, "42", snap["id"])
	assert.Equal(t, "Mug", snap["title"])
}

func TestEntitySetFieldTitle(t *testing.T) {
	e := &Entity{Type: EntityTypeCategory, ID: "7"}
	e.SetField("title", "Shoes")
	assert.Equal(t, "Shoes", e.Title)
	assert.Equal(t, "category:7", e.Ref().String())
	assert.Equal(t, "agent", EntityRef{Type: EntityTypeAgent}.String())
}

func TestStoreContextNonEmpty(t *testing.T) {
	ctx := StoreContext{
		"name":      "Acme",
		"blank":     "  ",
		"none":      nil,
		"languages": []string{},
		"extra":     map[string]any{},
		"count":     0,
	}
	assert.Equal(t, map[string]any{"name": "Acme", "count": 0}, ctx.NonEmpty())
	assert.Nil(t, StoreContext{"x": ""}.NonEmpty())
}

func TestIsListField(t *testing.T) {
	assert.True(t, IsListField("tags"))
	assert.True(t, IsListField("subcategories"))
	assert.False(t, IsListField("title"))
}

func TestSuggestionTarget(t *testing.T) {
	session := EntityRef{Type: EntityTypeProduct, ID: "1"}
	assert.Equal(t, session, (&Suggestion{Field: "title"}).Target(session))
	assert.Equal(t, EntityRef{Type: EntityTypeCategory, ID: "9"},
		(&Suggestion{EntityType: EntityTypeCategory, EntityID: "9"}).Target(session))
}

func TestGeneratedImageActions(t *testing.T) {
	img := GeneratedImage{URL: "u"}
	assert.Equal(t, []ImageAction{ImageActionSaveToLibrary, ImageActionSetFeatured},
		img.ActionsFor(EntityRef{Type: EntityTypeProduct, ID: "1"}))
	assert.Equal(t, []ImageAction{ImageActionSaveToLibrary, ImageActionSetThumbnail},
		img.ActionsFor(EntityRef{Type: EntityTypeCategory, ID: "2"}))
	assert.Equal(t, []ImageAction{ImageActionSaveToLibrary},
		img.ActionsFor(EntityRef{Type: EntityTypeAgent}))

	img.EntityType, img.EntityID = EntityTypeCategory, "5"
	assert.Equal(t, []ImageAction{ImageActionSaveToLibrary, ImageActionSetThumbnail},
		img.ActionsFor(EntityRef{Type: EntityTypeAgent}))
}

func TestTokenUsage(t *testing.T) {
	u := TokenUsage{Input: 1, Output: 2}
	u.Add(TokenUsage{Input: 3, Output: 4})
	assert.Equal(t, 10, u.Total())
	assert.True(t, Attachment{MimeType: "image/png"}.IsImage())
	assert.False(t, Attachment{MimeType: "application/pdf"}.IsImage())
	assert.True(t, ToolResult{Error: "x"}.IsError())
}
