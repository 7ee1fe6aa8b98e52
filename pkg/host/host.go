// Package host defines the host application's collaborators that the
// conversation engine calls out to: field persistence, category lookup,
// media actions, tool data and balance storage.
package host

import (
	"context"

	"github.com/codeready-toolchain/storeassist/pkg/models"
)

// FieldUpdater persists one field of a product or category.
type FieldUpdater interface {
	UpdateField(ctx context.Context, ref models.EntityRef, field string, value any) error
}

// CategoryLookup resolves category ids to display names.
type CategoryLookup interface {
	CategoryName(ctx context.Context, id string) (string, error)
}

// MediaLibrary performs the actions offered on generated images.
type MediaLibrary interface {
	SaveToLibrary(ctx context.Context, imageURL string) (mediaID string, err error)
	SetFeaturedImage(ctx context.Context, productID, imageURL string) error
	SetCategoryThumbnail(ctx context.Context, categoryID, imageURL string) error
}

// ToolFunc fetches data for one tool request. The result must be JSON
// serializable.
type ToolFunc func(ctx context.Context, name string, params map[string]any) (any, error)

// ToolExecutor resolves a whole batch of tool requests. Implementations
// report per-request failures inside the returned results; a non-nil error
// means the batch as a whole could not be attempted.
type ToolExecutor interface {
	Execute(ctx context.Context, requests []models.ToolRequest) ([]models.ToolResult, error)
}

// BalanceStore keeps the last known balance across reloads.
type BalanceStore interface {
	LoadBalance(ctx context.Context) (balance float64, ok bool, err error)
	SaveBalance(ctx context.Context, balance float64) error
}

// Host bundles the collaborators. Nil members disable the features that
// depend on them.
type Host struct {
	Fields     FieldUpdater
	Categories CategoryLookup
	Media      MediaLibrary
	Tools      ToolExecutor
	Balance    BalanceStore
}
