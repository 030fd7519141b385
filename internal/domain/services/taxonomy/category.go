package taxonomy

import (
	"context"

	models "canopy/internal/domain/models/taxonomy"
)

// CategoryService handles category business logic.
// Every mutation runs in a single transaction.
type CategoryService interface {
	// CreateCategory creates a category under an optional parent
	CreateCategory(ctx context.Context, req *CreateCategoryRequest) (*models.Category, error)

	// UpdateCategory renames, re-parents, reorders or (de)activates a category
	UpdateCategory(ctx context.Context, id string, req *UpdateCategoryRequest) (*models.Category, error)

	// DeleteCategory soft-deletes a category under the given policy
	DeleteCategory(ctx context.Context, id string, policy models.DeletePolicy, actorID string) (*models.DeleteResult, error)

	// PreviewDelete reports what a delete would affect without changing anything
	PreviewDelete(ctx context.Context, id string) (*models.DeletePreview, error)

	// RestoreCategory clears the soft-delete marker on a single category
	RestoreCategory(ctx context.Context, id, actorID string) (*models.Category, error)

	// ReorderCategories assigns sequential sort orders to the given ids
	ReorderCategories(ctx context.Context, req *ReorderRequest) error

	// GetCategory retrieves a live category
	GetCategory(ctx context.Context, id string) (*models.Category, error)

	// GetCategoryBySlug retrieves a live category by slug within a parent scope
	GetCategoryBySlug(ctx context.Context, slug string, parentID *string) (*models.Category, error)

	// ListRoots lists root categories
	ListRoots(ctx context.Context, opts models.ListOptions) ([]models.Category, error)

	// ListChildren lists direct children of a category
	ListChildren(ctx context.Context, parentID string, opts models.ListOptions) ([]models.Category, error)

	// GetTree returns the whole forest flattened in display order (parents first)
	GetTree(ctx context.Context, opts models.ListOptions) ([]models.Category, error)

	// GetNestedTree returns the whole forest as nested nodes
	GetNestedTree(ctx context.Context, opts models.ListOptions) ([]*models.CategoryNode, error)

	// GetAncestors lists ancestors root first
	GetAncestors(ctx context.Context, id string) ([]models.Category, error)

	// GetDescendants lists descendants ordered by depth then path.
	// Like the tree views, an inactive descendant is hidden together with its subtree
	// unless opts.IncludeInactive is set.
	GetDescendants(ctx context.Context, id string, opts models.ListOptions) ([]models.Category, error)

	// Search finds categories by text
	Search(ctx context.Context, opts *models.SearchOptions) ([]models.SearchResult, error)

	// ListDeleted lists soft-deleted categories for audit and restore
	ListDeleted(ctx context.Context) ([]models.Category, error)

	// VerifyIntegrity audits every tree and rule invariant
	VerifyIntegrity(ctx context.Context) (*models.IntegrityReport, error)
}

// CreateCategoryRequest represents a category creation request
type CreateCategoryRequest struct {
	ParentID    *string `json:"parent_id,omitempty"` // null for root
	Slug        string  `json:"slug"`                // derived from name when empty
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Color       string  `json:"color"`
	SortOrder   *int    `json:"sort_order,omitempty"` // appended after siblings when nil
	IsActive    *bool   `json:"is_active,omitempty"`  // defaults to true
	ActorID     string  `json:"-"`
}

// OptionalParent tracks tri-state semantics for parent updates (RFC 7396 PATCH).
// This is transport-agnostic (no JSON tags) - handler maps from httputil.OptionalString.
//   - Present=false: field absent from request (don't move)
//   - Present=true, Value=nil: move to root
//   - Present=true, Value=&"id": move under id
type OptionalParent struct {
	Present bool
	Value   *string
}

// UpdateCategoryRequest represents a partial category update.
// Nil pointers leave the field unchanged.
type UpdateCategoryRequest struct {
	Slug        *string
	Name        *string
	Description *string
	Icon        *string
	Color       *string
	SortOrder   *int
	IsActive    *bool
	ParentID    OptionalParent
	ActorID     string
}

// HasChanges reports whether the request touches at least one field
func (r *UpdateCategoryRequest) HasChanges() bool {
	return r.Slug != nil || r.Name != nil || r.Description != nil || r.Icon != nil ||
		r.Color != nil || r.SortOrder != nil || r.IsActive != nil || r.ParentID.Present
}

// ReorderRequest assigns sort_order 0..n-1 to IDs in the given order
type ReorderRequest struct {
	ParentID *string  `json:"parent_id"` // scope of the reorder, informational
	IDs      []string `json:"ids"`
	ActorID  string   `json:"-"`
}
