package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"canopy/internal/domain"
	models "canopy/internal/domain/models/taxonomy"
	taxRepo "canopy/internal/domain/repositories/taxonomy"
	"canopy/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCategoryRepository implements the CategoryRepository interface
type PostgresCategoryRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(config *postgres.RepositoryConfig) taxRepo.CategoryRepository {
	return &PostgresCategoryRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const categoryColumns = `id, parent_id, slug, name, description, icon, color, sort_order,
	depth, path, is_active, is_deleted, deleted_at, deleted_by,
	created_by, updated_by, created_at, updated_at`

// displayOrder orders siblings the way they are shown
const displayOrder = `sort_order ASC, name ASC, id ASC`

// scanCategory scans a row into a Category struct
func scanCategory(scanner interface{ Scan(...any) error }, extra ...any) (*models.Category, error) {
	var c models.Category
	dest := []any{
		&c.ID, &c.ParentID, &c.Slug, &c.Name, &c.Description, &c.Icon, &c.Color, &c.SortOrder,
		&c.Depth, &c.Path, &c.IsActive, &c.IsDeleted, &c.DeletedAt, &c.DeletedBy,
		&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &c, nil
}

// collectCategories drains rows into a slice, returning an empty slice instead of nil
func collectCategories(rows pgx.Rows) ([]models.Category, error) {
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

// listFilter renders the WHERE fragment for list options
func listFilter(opts models.ListOptions) string {
	var conds []string
	if !opts.IncludeDeleted {
		conds = append(conds, "is_deleted = FALSE")
	}
	if !opts.IncludeInactive {
		conds = append(conds, "is_active = TRUE")
	}
	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, " AND ")
}

// Create inserts a category whose ID, Depth and Path are already computed
func (r *PostgresCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, parent_id, slug, name, description, icon, color, sort_order,
		                depth, path, is_active, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`, r.tables.Categories)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		c.ID,
		c.ParentID,
		c.Slug,
		c.Name,
		c.Description,
		c.Icon,
		c.Color,
		c.SortOrder,
		c.Depth,
		c.Path,
		c.IsActive,
		c.CreatedBy,
		c.UpdatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		return r.mapWriteError(ctx, err, c, "create category")
	}

	return nil
}

// FindByID retrieves a category by ID. Returns nil if not found.
func (r *PostgresCategoryRepository) FindByID(ctx context.Context, id string, includeDeleted bool) (*models.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, categoryColumns, r.tables.Categories)
	if !includeDeleted {
		query += ` AND is_deleted = FALSE`
	}

	return r.findOne(ctx, query, "find category by id", id)
}

// FindByIDForUpdate retrieves a live category and locks its row. Returns nil if not found.
func (r *PostgresCategoryRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE id = $1 AND is_deleted = FALSE
		FOR UPDATE
	`, categoryColumns, r.tables.Categories)

	return r.findOne(ctx, query, "lock category", id)
}

// FindBySlug retrieves a live category by slug within a parent scope. Returns nil if not found.
func (r *PostgresCategoryRepository) FindBySlug(ctx context.Context, slug string, parentID *string) (*models.Category, error) {
	if parentID == nil {
		query := fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE slug = $1 AND parent_id IS NULL AND is_deleted = FALSE
		`, categoryColumns, r.tables.Categories)
		return r.findOne(ctx, query, "find category by slug", slug)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE slug = $1 AND parent_id = $2 AND is_deleted = FALSE
	`, categoryColumns, r.tables.Categories)
	return r.findOne(ctx, query, "find category by slug", slug, *parentID)
}

// FindRoots lists root categories in display order
func (r *PostgresCategoryRepository) FindRoots(ctx context.Context, opts models.ListOptions) ([]models.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id IS NULL AND %s
		ORDER BY %s
	`, categoryColumns, r.tables.Categories, listFilter(opts), displayOrder)

	return r.findMany(ctx, query, "list root categories")
}

// FindChildren lists direct children in display order
func (r *PostgresCategoryRepository) FindChildren(ctx context.Context, parentID string, opts models.ListOptions) ([]models.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id = $1 AND %s
		ORDER BY %s
	`, categoryColumns, r.tables.Categories, listFilter(opts), displayOrder)

	return r.findMany(ctx, query, "list child categories", parentID)
}

// CountChildren counts live direct children
func (r *PostgresCategoryRepository) CountChildren(ctx context.Context, parentID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE parent_id = $1 AND is_deleted = FALSE
	`, r.tables.Categories)

	var count int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, parentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count child categories: %w", err)
	}
	return count, nil
}

// GetAll lists every category ordered by depth then path, so parents come first
func (r *PostgresCategoryRepository) GetAll(ctx context.Context, opts models.ListOptions) ([]models.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s
		ORDER BY depth ASC, path ASC
	`, categoryColumns, r.tables.Categories, listFilter(opts))

	return r.findMany(ctx, query, "list categories")
}

// GetAncestors lists live ancestors root first, using the ids encoded in the path
func (r *PostgresCategoryRepository) GetAncestors(ctx context.Context, id string) ([]models.Category, error) {
	node, err := r.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return []models.Category{}, nil
	}

	ancestorIDs := node.AncestorIDs()
	if len(ancestorIDs) == 0 {
		return []models.Category{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE id = ANY($1::uuid[]) AND is_deleted = FALSE
		ORDER BY depth ASC
	`, categoryColumns, r.tables.Categories)

	return r.findMany(ctx, query, "list ancestors", ancestorIDs)
}

// GetDescendants lists live descendants ordered by depth then path.
// With lock set, the subtree rows stay locked until the transaction ends.
func (r *PostgresCategoryRepository) GetDescendants(ctx context.Context, id string, lock bool) ([]models.Category, error) {
	node, err := r.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return []models.Category{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE path LIKE $1 AND is_deleted = FALSE
		ORDER BY depth ASC, path ASC
	`, categoryColumns, r.tables.Categories)
	if lock {
		query += ` FOR UPDATE`
	}

	return r.findMany(ctx, query, "list descendants", escapeLike(models.DescendantPrefix(node.Path))+"%")
}

// Search finds live categories by substring on name, slug or description.
// Name-prefix matches rank first, then name-substring, then other fields.
func (r *PostgresCategoryRepository) Search(ctx context.Context, opts *models.SearchOptions) ([]models.SearchResult, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search options: %w", err)
	}

	activeFilter := "AND is_active = TRUE"
	if opts.IncludeInactive {
		activeFilter = ""
	}

	query := fmt.Sprintf(`
		SELECT %s,
		       CASE
		           WHEN name ILIKE $1 || '%%' THEN %d
		           WHEN name ILIKE '%%' || $1 || '%%' THEN %d
		           ELSE %d
		       END AS rank
		FROM %s
		WHERE is_deleted = FALSE %s
		  AND (name ILIKE '%%' || $1 || '%%'
		       OR slug ILIKE '%%' || $1 || '%%'
		       OR description ILIKE '%%' || $1 || '%%')
		ORDER BY rank ASC, depth ASC, sort_order ASC, name ASC
		LIMIT $2
	`, categoryColumns, models.RankNamePrefix, models.RankNameSubstring, models.RankOtherField,
		r.tables.Categories, activeFilter)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, escapeLike(opts.Query), opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("search categories: %w", err)
	}
	defer rows.Close()

	results := []models.SearchResult{}
	for rows.Next() {
		var rank int
		c, err := scanCategory(rows, &rank)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, models.SearchResult{Category: *c, Rank: rank})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}

	return results, nil
}

// FindDeleted lists soft-deleted categories, most recent first
func (r *PostgresCategoryRepository) FindDeleted(ctx context.Context) ([]models.Category, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE is_deleted = TRUE
		ORDER BY deleted_at DESC, path ASC
	`, categoryColumns, r.tables.Categories)

	return r.findMany(ctx, query, "list deleted categories")
}

// Update writes metadata and placement of a single live category
func (r *PostgresCategoryRepository) Update(ctx context.Context, c *models.Category) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, slug = $2, name = $3, description = $4, icon = $5, color = $6,
		    sort_order = $7, depth = $8, path = $9, is_active = $10, updated_by = $11, updated_at = $12
		WHERE id = $13 AND is_deleted = FALSE
	`, r.tables.Categories)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		c.ParentID,
		c.Slug,
		c.Name,
		c.Description,
		c.Icon,
		c.Color,
		c.SortOrder,
		c.Depth,
		c.Path,
		c.IsActive,
		c.UpdatedBy,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return r.mapWriteError(ctx, err, c, "update category")
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("category %s: %w", c.ID, domain.ErrNotFound)
	}

	return nil
}

// RewriteSubtree moves every live descendant under oldPrefix to newPrefix in one statement
func (r *PostgresCategoryRepository) RewriteSubtree(ctx context.Context, oldPrefix, newPrefix string, depthDelta int, actorID string, at time.Time) (int, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET path = $1 || substr(path, length($2) + 1),
		    depth = depth + $3,
		    updated_by = $4,
		    updated_at = $5
		WHERE path LIKE $6 AND is_deleted = FALSE
	`, r.tables.Categories)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		newPrefix,
		oldPrefix,
		depthDelta,
		actorID,
		at,
		escapeLike(oldPrefix)+"%",
	)
	if err != nil {
		if postgres.IsCheckViolation(err) {
			return 0, fmt.Errorf("rewrite subtree %s: %w", oldPrefix, domain.ErrMaxDepthExceeded)
		}
		return 0, fmt.Errorf("rewrite subtree: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// SoftDelete marks live categories deleted
func (r *PostgresCategoryRepository) SoftDelete(ctx context.Context, ids []string, actorID string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET is_deleted = TRUE, deleted_at = $1, deleted_by = $2, updated_by = $2, updated_at = $1
		WHERE id = ANY($3::uuid[]) AND is_deleted = FALSE
	`, r.tables.Categories)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, at, actorID, ids)
	if err != nil {
		return 0, fmt.Errorf("soft delete categories: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// Restore clears the soft-delete marker and writes the recomputed placement
func (r *PostgresCategoryRepository) Restore(ctx context.Context, c *models.Category) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET is_deleted = FALSE, deleted_at = NULL, deleted_by = NULL,
		    depth = $1, path = $2, updated_by = $3, updated_at = $4
		WHERE id = $5 AND is_deleted = TRUE
	`, r.tables.Categories)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, c.Depth, c.Path, c.UpdatedBy, c.UpdatedAt, c.ID)
	if err != nil {
		return r.mapWriteError(ctx, err, c, "restore category")
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("deleted category %s: %w", c.ID, domain.ErrNotFound)
	}

	return nil
}

// UpdateSortOrders assigns sort_order = position for each id in one batch round trip
func (r *PostgresCategoryRepository) UpdateSortOrders(ctx context.Context, ids []string, actorID string, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET sort_order = $1, updated_by = $2, updated_at = $3
		WHERE id = $4 AND is_deleted = FALSE
	`, r.tables.Categories)

	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(query, i, actorID, at, id)
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	results := executor.SendBatch(ctx, batch)

	var execErr error
	for _, id := range ids {
		if _, err := results.Exec(); err != nil {
			execErr = fmt.Errorf("reorder category %s: %w", id, err)
			break
		}
	}

	if err := results.Close(); err != nil && execErr == nil {
		return fmt.Errorf("close reorder batch: %w", err)
	}
	return execErr
}

// findOne runs a single-row category query, mapping no rows to nil
func (r *PostgresCategoryRepository) findOne(ctx context.Context, query, op string, args ...any) (*models.Category, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	c, err := scanCategory(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil // Not found, not an error
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// findMany runs a multi-row category query
func (r *PostgresCategoryRepository) findMany(ctx context.Context, query, op string, args ...any) ([]models.Category, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return collectCategories(rows)
}

// mapWriteError turns constraint violations into domain errors
func (r *PostgresCategoryRepository) mapWriteError(ctx context.Context, err error, c *models.Category, op string) error {
	switch {
	case postgres.IsUniqueViolation(err):
		// Look up the sibling holding the slug so the conflict can name it
		existingID := ""
		if existing, findErr := r.FindBySlug(ctx, c.Slug, c.ParentID); findErr == nil && existing != nil {
			existingID = existing.ID
		}
		return domain.NewDuplicateSlugError(c.Slug, existingID)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("category %s: %w", c.ID, domain.ErrParentNotFound)
	case postgres.IsCheckViolation(err):
		return fmt.Errorf("category %s: %w", c.ID, domain.ErrMaxDepthExceeded)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// escapeLike escapes LIKE wildcards so the value matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
