package taxonomy

import (
	"context"
	"time"

	models "canopy/internal/domain/models/taxonomy"
)

// CategoryRepository defines data access operations for categories.
// Lookups return nil (or an empty slice) when nothing matches; they never return ErrNotFound.
type CategoryRepository interface {
	// Create inserts a category whose ID, Depth and Path are already computed
	Create(ctx context.Context, category *models.Category) error

	// FindByID retrieves a category by ID
	FindByID(ctx context.Context, id string, includeDeleted bool) (*models.Category, error)

	// FindByIDForUpdate retrieves a live category and locks its row for the current transaction
	FindByIDForUpdate(ctx context.Context, id string) (*models.Category, error)

	// FindBySlug retrieves a live category by slug within the scope of parentID (nil = roots)
	FindBySlug(ctx context.Context, slug string, parentID *string) (*models.Category, error)

	// FindRoots lists root categories in display order
	FindRoots(ctx context.Context, opts models.ListOptions) ([]models.Category, error)

	// FindChildren lists direct children of parentID in display order
	FindChildren(ctx context.Context, parentID string, opts models.ListOptions) ([]models.Category, error)

	// CountChildren counts live direct children of parentID
	CountChildren(ctx context.Context, parentID string) (int, error)

	// GetAll lists every category (flat, ordered by depth then path)
	GetAll(ctx context.Context, opts models.ListOptions) ([]models.Category, error)

	// GetAncestors lists the live ancestors of a category, root first, excluding the category
	GetAncestors(ctx context.Context, id string) ([]models.Category, error)

	// GetDescendants lists the live descendants of a category ordered by depth then path, excluding the category.
	// When lock is set, the rows are locked for the current transaction.
	GetDescendants(ctx context.Context, id string, lock bool) ([]models.Category, error)

	// Search finds live categories matching a text query, best matches first
	Search(ctx context.Context, opts *models.SearchOptions) ([]models.SearchResult, error)

	// FindDeleted lists soft-deleted categories, most recently deleted first
	FindDeleted(ctx context.Context) ([]models.Category, error)

	// Update writes metadata and placement (parent, depth, path) of a single category
	Update(ctx context.Context, category *models.Category) error

	// RewriteSubtree shifts every live category under oldPrefix by depthDelta and
	// replaces the oldPrefix path prefix with newPrefix, in one statement
	RewriteSubtree(ctx context.Context, oldPrefix, newPrefix string, depthDelta int, actorID string, at time.Time) (int, error)

	// SoftDelete marks the given live categories deleted and returns how many rows changed
	SoftDelete(ctx context.Context, ids []string, actorID string, at time.Time) (int, error)

	// Restore clears the soft-delete marker on one category and writes its recomputed placement
	Restore(ctx context.Context, category *models.Category) error

	// UpdateSortOrders assigns sort_order = position for each id
	UpdateSortOrders(ctx context.Context, ids []string, actorID string, at time.Time) error
}
