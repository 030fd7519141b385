package taxonomy

import (
	"context"

	models "canopy/internal/domain/models/taxonomy"
)

// RuleRepository is the boundary to the externally-owned rule table.
// Only the category reference is read or written here.
type RuleRepository interface {
	// CountByCategory counts rules whose category is categoryID
	CountByCategory(ctx context.Context, categoryID string) (int, error)

	// CountByCategories counts rules whose category is any of categoryIDs
	CountByCategories(ctx context.Context, categoryIDs []string) (int, error)

	// ListByCategory lists rules whose category is categoryID
	ListByCategory(ctx context.Context, categoryID string) ([]models.Rule, error)

	// ReassignCategory re-points every rule from fromID to toID (nil = uncategorized)
	ReassignCategory(ctx context.Context, fromID string, toID *string) (int, error)

	// DetachCategories clears the category of every rule pointing at any of categoryIDs
	DetachCategories(ctx context.Context, categoryIDs []string) (int, error)

	// ListCategorized lists every rule that references a category (for integrity audits)
	ListCategorized(ctx context.Context) ([]models.Rule, error)
}
