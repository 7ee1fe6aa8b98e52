package models

// ImageAction is an entity-aware action offered for a generated image.
type ImageAction string

const (
	ImageActionSaveToLibrary ImageAction = "save_to_library"
	ImageActionSetFeatured   ImageAction = "set_featured"
	ImageActionSetThumbnail  ImageAction = "set_thumbnail"
)

// GeneratedImage is an image produced by the remote service.
type GeneratedImage struct {
	URL         string     `json:"url"`
	Style       string     `json:"style,omitempty"`
	AspectRatio string     `json:"aspect_ratio,omitempty"`
	EntityType  EntityType `json:"entity_type,omitempty"`
	EntityID    string     `json:"entity_id,omitempty"`
}

// ActionsFor returns the actions available for img given the entity the
// image (or, failing that, the session) is bound to.
func (img GeneratedImage) ActionsFor(session EntityRef) []ImageAction {
	target := session
	if img.EntityType != "" {
		target = EntityRef{Type: img.EntityType, ID: img.EntityID}
	}
	actions := []ImageAction{ImageActionSaveToLibrary}
	if target.ID == "" {
		return actions
	}
	switch target.Type {
	case EntityTypeProduct:
		actions = append(actions, ImageActionSetFeatured)
	case EntityTypeCategory:
		actions = append(actions, ImageActionSetThumbnail)
	}
	return actions
}

// CatalogStep is one action of a catalog reorganization proposal.
type CatalogStep struct {
	Action      string         `json:"action"`
	Target      string         `json:"target,omitempty"`
	Description string         `json:"description,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// CatalogProposal is a multi-step reorganize-catalog plan. It is rendered
// separately from field suggestions and has no apply/discard lifecycle of its
// own; the user accepts it by replying.
type CatalogProposal struct {
	ID      string        `json:"id,omitempty"`
	Title   string        `json:"title,omitempty"`
	Summary string        `json:"summary,omitempty"`
	Steps   []CatalogStep `json:"steps"`
}
