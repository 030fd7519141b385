package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"canopy/internal/domain"
	models "canopy/internal/domain/models/taxonomy"
	taxRepo "canopy/internal/domain/repositories/taxonomy"
)

// CategoryRepository implements taxRepo.CategoryRepository over a Store
type CategoryRepository struct {
	store *Store
}

// NewCategoryRepository creates a category repository backed by the store
func NewCategoryRepository(store *Store) taxRepo.CategoryRepository {
	return &CategoryRepository{store: store}
}

// Create inserts a category whose ID, Depth and Path are already computed
func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	defer r.store.lock(ctx)()

	if _, exists := r.store.categories[c.ID]; exists {
		return fmt.Errorf("create category: id %s already exists", c.ID)
	}
	if err := r.checkConstraints(c); err != nil {
		return err
	}

	row := cloneCategory(c)
	r.store.categories[c.ID] = &row
	return nil
}

// FindByID retrieves a category by ID. Returns nil if not found.
func (r *CategoryRepository) FindByID(ctx context.Context, id string, includeDeleted bool) (*models.Category, error) {
	defer r.store.lock(ctx)()

	c, ok := r.store.categories[id]
	if !ok || (c.IsDeleted && !includeDeleted) {
		return nil, nil
	}
	out := cloneCategory(c)
	return &out, nil
}

// FindByIDForUpdate retrieves a live category. The store lock already serializes writers.
func (r *CategoryRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.Category, error) {
	return r.FindByID(ctx, id, false)
}

// FindBySlug retrieves a live category by slug within a parent scope. Returns nil if not found.
func (r *CategoryRepository) FindBySlug(ctx context.Context, slug string, parentID *string) (*models.Category, error) {
	defer r.store.lock(ctx)()

	if c := r.liveSibling(slug, parentID, ""); c != nil {
		out := cloneCategory(c)
		return &out, nil
	}
	return nil, nil
}

// FindRoots lists root categories in display order
func (r *CategoryRepository) FindRoots(ctx context.Context, opts models.ListOptions) ([]models.Category, error) {
	defer r.store.lock(ctx)()

	out := r.filter(func(c *models.Category) bool {
		return c.ParentID == nil && visible(c, opts)
	})
	sortDisplay(out)
	return out, nil
}

// FindChildren lists direct children in display order
func (r *CategoryRepository) FindChildren(ctx context.Context, parentID string, opts models.ListOptions) ([]models.Category, error) {
	defer r.store.lock(ctx)()

	out := r.filter(func(c *models.Category) bool {
		return c.ParentID != nil && *c.ParentID == parentID && visible(c, opts)
	})
	sortDisplay(out)
	return out, nil
}

// CountChildren counts live direct children
func (r *CategoryRepository) CountChildren(ctx context.Context, parentID string) (int, error) {
	defer r.store.lock(ctx)()

	count := 0
	for _, c := range r.store.categories {
		if !c.IsDeleted && c.ParentID != nil && *c.ParentID == parentID {
			count++
		}
	}
	return count, nil
}

// GetAll lists every category ordered by depth then path
func (r *CategoryRepository) GetAll(ctx context.Context, opts models.ListOptions) ([]models.Category, error) {
	defer r.store.lock(ctx)()

	out := r.filter(func(c *models.Category) bool { return visible(c, opts) })
	sortByPath(out)
	return out, nil
}

// GetAncestors lists live ancestors root first
func (r *CategoryRepository) GetAncestors(ctx context.Context, id string) ([]models.Category, error) {
	defer r.store.lock(ctx)()

	node, ok := r.store.categories[id]
	if !ok || node.IsDeleted {
		return []models.Category{}, nil
	}

	out := []models.Category{}
	for _, ancestorID := range node.AncestorIDs() {
		if a, ok := r.store.categories[ancestorID]; ok && !a.IsDeleted {
			out = append(out, cloneCategory(a))
		}
	}
	return out, nil
}

// GetDescendants lists live descendants ordered by depth then path
func (r *CategoryRepository) GetDescendants(ctx context.Context, id string, lock bool) ([]models.Category, error) {
	defer r.store.lock(ctx)()

	node, ok := r.store.categories[id]
	if !ok || node.IsDeleted {
		return []models.Category{}, nil
	}

	prefix := models.DescendantPrefix(node.Path)
	out := r.filter(func(c *models.Category) bool {
		return !c.IsDeleted && strings.HasPrefix(c.Path, prefix)
	})
	sortByPath(out)
	return out, nil
}

// Search finds live categories by substring on name, slug or description
func (r *CategoryRepository) Search(ctx context.Context, opts *models.SearchOptions) ([]models.SearchResult, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search options: %w", err)
	}

	defer r.store.lock(ctx)()

	results := []models.SearchResult{}
	for _, c := range r.store.categories {
		if c.IsDeleted || (!c.IsActive && !opts.IncludeInactive) {
			continue
		}
		if rank, ok := models.MatchRank(c, opts.Query); ok {
			results = append(results, models.SearchResult{Category: cloneCategory(c), Rank: rank})
		}
	}

	// Map iteration order is random; fix it before the stable rank sort
	sort.Slice(results, func(i, j int) bool { return results[i].Category.ID < results[j].Category.ID })
	models.SortSearchResults(results)

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// FindDeleted lists soft-deleted categories, most recent first
func (r *CategoryRepository) FindDeleted(ctx context.Context) ([]models.Category, error) {
	defer r.store.lock(ctx)()

	out := r.filter(func(c *models.Category) bool { return c.IsDeleted })
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].DeletedAt, out[j].DeletedAt
		if !a.Equal(*b) {
			return a.After(*b)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Update writes metadata and placement of a single live category
func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) error {
	defer r.store.lock(ctx)()

	existing, ok := r.store.categories[c.ID]
	if !ok || existing.IsDeleted {
		return fmt.Errorf("category %s: %w", c.ID, domain.ErrNotFound)
	}
	if err := r.checkConstraints(c); err != nil {
		return err
	}

	existing.ParentID = copyString(c.ParentID)
	existing.Slug = c.Slug
	existing.Name = c.Name
	existing.Description = c.Description
	existing.Icon = c.Icon
	existing.Color = c.Color
	existing.SortOrder = c.SortOrder
	existing.Depth = c.Depth
	existing.Path = c.Path
	existing.IsActive = c.IsActive
	existing.UpdatedBy = c.UpdatedBy
	existing.UpdatedAt = c.UpdatedAt
	return nil
}

// RewriteSubtree moves every live descendant under oldPrefix to newPrefix
func (r *CategoryRepository) RewriteSubtree(ctx context.Context, oldPrefix, newPrefix string, depthDelta int, actorID string, at time.Time) (int, error) {
	defer r.store.lock(ctx)()

	var targets []*models.Category
	for _, c := range r.store.categories {
		if !c.IsDeleted && strings.HasPrefix(c.Path, oldPrefix) {
			if d := c.Depth + depthDelta; d < 0 || d > maxStoredDepth {
				return 0, fmt.Errorf("rewrite subtree %s: %w", oldPrefix, domain.ErrMaxDepthExceeded)
			}
			targets = append(targets, c)
		}
	}

	for _, c := range targets {
		c.Path = newPrefix + c.Path[len(oldPrefix):]
		c.Depth += depthDelta
		c.UpdatedBy = actorID
		c.UpdatedAt = at
	}
	return len(targets), nil
}

// SoftDelete marks live categories deleted
func (r *CategoryRepository) SoftDelete(ctx context.Context, ids []string, actorID string, at time.Time) (int, error) {
	defer r.store.lock(ctx)()

	count := 0
	for _, id := range ids {
		c, ok := r.store.categories[id]
		if !ok || c.IsDeleted {
			continue
		}
		deletedAt := at
		deletedBy := actorID
		c.IsDeleted = true
		c.DeletedAt = &deletedAt
		c.DeletedBy = &deletedBy
		c.UpdatedBy = actorID
		c.UpdatedAt = at
		count++
	}
	return count, nil
}

// Restore clears the soft-delete marker and writes the recomputed placement
func (r *CategoryRepository) Restore(ctx context.Context, c *models.Category) error {
	defer r.store.lock(ctx)()

	existing, ok := r.store.categories[c.ID]
	if !ok || !existing.IsDeleted {
		return fmt.Errorf("deleted category %s: %w", c.ID, domain.ErrNotFound)
	}

	candidate := cloneCategory(existing)
	candidate.Depth = c.Depth
	candidate.Path = c.Path
	if err := r.checkConstraints(&candidate); err != nil {
		return err
	}

	existing.IsDeleted = false
	existing.DeletedAt = nil
	existing.DeletedBy = nil
	existing.Depth = c.Depth
	existing.Path = c.Path
	existing.UpdatedBy = c.UpdatedBy
	existing.UpdatedAt = c.UpdatedAt
	return nil
}

// UpdateSortOrders assigns sort_order = position for each live id
func (r *CategoryRepository) UpdateSortOrders(ctx context.Context, ids []string, actorID string, at time.Time) error {
	defer r.store.lock(ctx)()

	for i, id := range ids {
		if c, ok := r.store.categories[id]; ok && !c.IsDeleted {
			c.SortOrder = i
			c.UpdatedBy = actorID
			c.UpdatedAt = at
		}
	}
	return nil
}

// checkConstraints applies the table constraints to a row about to be written as live
func (r *CategoryRepository) checkConstraints(c *models.Category) error {
	if c.Depth < 0 || c.Depth > maxStoredDepth {
		return fmt.Errorf("category %s: %w", c.ID, domain.ErrMaxDepthExceeded)
	}
	if (c.ParentID == nil) != (c.Depth == 0) {
		return fmt.Errorf("category %s: root iff depth 0: %w", c.ID, domain.ErrValidation)
	}
	if c.ParentID != nil {
		if *c.ParentID == c.ID {
			return fmt.Errorf("category %s: %w", c.ID, domain.ErrCyclicMove)
		}
		if _, ok := r.store.categories[*c.ParentID]; !ok {
			return fmt.Errorf("category %s: %w", c.ID, domain.ErrParentNotFound)
		}
	}
	if existing := r.liveSibling(c.Slug, c.ParentID, c.ID); existing != nil {
		return domain.NewDuplicateSlugError(c.Slug, existing.ID)
	}
	return nil
}

// liveSibling finds a live category other than excludeID holding slug under parentID
func (r *CategoryRepository) liveSibling(slug string, parentID *string, excludeID string) *models.Category {
	for _, c := range r.store.categories {
		if c.ID != excludeID && !c.IsDeleted && c.Slug == slug && sameParent(c.ParentID, parentID) {
			return c
		}
	}
	return nil
}

func (r *CategoryRepository) filter(keep func(*models.Category) bool) []models.Category {
	out := []models.Category{}
	for _, c := range r.store.categories {
		if keep(c) {
			out = append(out, cloneCategory(c))
		}
	}
	return out
}

func visible(c *models.Category, opts models.ListOptions) bool {
	if c.IsDeleted && !opts.IncludeDeleted {
		return false
	}
	if !c.IsActive && !opts.IncludeInactive {
		return false
	}
	return true
}

func sortDisplay(cs []models.Category) {
	sort.Slice(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

func sortByPath(cs []models.Category) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Depth != cs[j].Depth {
			return cs[i].Depth < cs[j].Depth
		}
		return cs[i].Path < cs[j].Path
	})
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
