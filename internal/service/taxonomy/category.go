package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"canopy/internal/config"
	"canopy/internal/domain"
	models "canopy/internal/domain/models/taxonomy"
	"canopy/internal/domain/repositories"
	taxRepo "canopy/internal/domain/repositories/taxonomy"
	taxSvc "canopy/internal/domain/services/taxonomy"
	"canopy/internal/slug"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

type categoryService struct {
	categoryRepo taxRepo.CategoryRepository
	ruleRepo     taxRepo.RuleRepository
	tree         *TreeEngine
	deleter      *SafeDeleteEngine
	txManager    repositories.TransactionManager
	logger       *slog.Logger
	now          func() time.Time
}

// NewCategoryService creates a new category service.
// maxDepth is the deepest depth a category may sit at (root = 0).
func NewCategoryService(
	categoryRepo taxRepo.CategoryRepository,
	ruleRepo taxRepo.RuleRepository,
	txManager repositories.TransactionManager,
	maxDepth int,
	logger *slog.Logger,
) taxSvc.CategoryService {
	tree := NewTreeEngine(categoryRepo, maxDepth, logger)
	return &categoryService{
		categoryRepo: categoryRepo,
		ruleRepo:     ruleRepo,
		tree:         tree,
		deleter:      NewSafeDeleteEngine(categoryRepo, ruleRepo, tree, logger),
		txManager:    txManager,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateCategory validates fields, then placement, then slug uniqueness, and inserts
func (s *categoryService) CreateCategory(ctx context.Context, req *taxSvc.CreateCategoryRequest) (*models.Category, error) {
	// Normalize empty string to nil for root categories
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.TrimSpace(req.Slug)
	if req.Slug == "" {
		req.Slug = slug.Generate(req.Name, config.MaxSlugLength)
	}

	if err := s.validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := s.now()
	category := &models.Category{
		ID:          uuid.NewString(),
		ParentID:    req.ParentID,
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
		IsActive:    req.IsActive == nil || *req.IsActive,
		CreatedBy:   req.ActorID,
		UpdatedBy:   req.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		depth, path, err := s.tree.Place(txCtx, category.ID, category.ParentID)
		if err != nil {
			return err
		}
		category.Depth = depth
		category.Path = path

		if err := s.tree.ValidateSlug(txCtx, category.Slug, category.ParentID, category.ID); err != nil {
			return err
		}

		if req.SortOrder != nil {
			category.SortOrder = *req.SortOrder
		} else {
			siblings, err := s.countSiblings(txCtx, category.ParentID)
			if err != nil {
				return err
			}
			category.SortOrder = siblings
		}

		return s.categoryRepo.Create(txCtx, category)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("category created",
		"id", category.ID,
		"slug", category.Slug,
		"parent_id", category.ParentID,
		"depth", category.Depth,
	)

	return category, nil
}

// UpdateCategory applies a partial update; a parent change moves the whole subtree
func (s *categoryService) UpdateCategory(ctx context.Context, id string, req *taxSvc.UpdateCategoryRequest) (*models.Category, error) {
	var updated *models.Category

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		category, err := s.lockLive(txCtx, id)
		if err != nil {
			return err
		}

		if err := s.validateUpdateRequest(req); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}

		applyUpdate(category, req)
		now := s.now()

		// Tri-state: only move if the field was present and names a different parent
		if req.ParentID.Present && !sameParent(category.ParentID, req.ParentID.Value) {
			plan, err := s.tree.PlanMove(txCtx, category, normalizeParent(req.ParentID.Value))
			if err != nil {
				return err
			}
			if err := s.tree.ValidateSlug(txCtx, plan.Node.Slug, plan.Node.ParentID, id); err != nil {
				return err
			}

			s.logger.Debug("moving category",
				"id", id,
				"from_parent", category.ParentID,
				"to_parent", plan.Node.ParentID,
				"descendants", plan.Descendants,
			)

			if err := s.tree.ApplyMove(txCtx, plan, req.ActorID, now); err != nil {
				return err
			}
			updated = plan.Node
			return nil
		}

		if req.Slug != nil {
			if err := s.tree.ValidateSlug(txCtx, category.Slug, category.ParentID, id); err != nil {
				return err
			}
		}

		category.UpdatedBy = req.ActorID
		category.UpdatedAt = now
		if err := s.categoryRepo.Update(txCtx, category); err != nil {
			return err
		}
		updated = category
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("category updated",
		"id", updated.ID,
		"slug", updated.Slug,
		"parent_id", updated.ParentID,
		"depth", updated.Depth,
	)

	return updated, nil
}

// DeleteCategory soft-deletes a category under policy in one transaction.
// A blocked delete is returned as a result with Success=false, not as an error.
func (s *categoryService) DeleteCategory(ctx context.Context, id string, policy models.DeletePolicy, actorID string) (*models.DeleteResult, error) {
	if !isID(id) {
		return nil, fmt.Errorf("category %q: %w", id, domain.ErrNotFound)
	}
	if policy == "" {
		policy = models.DefaultDeletePolicy
	}
	if _, err := models.ParseDeletePolicy(string(policy)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor is required", domain.ErrValidation)
	}

	var result *models.DeleteResult
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		result, err = s.deleter.Delete(txCtx, id, policy, actorID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if !result.Success {
		s.logger.Info("category delete blocked",
			"id", id,
			"children", result.AffectedChildren,
			"rules", result.AffectedRules,
		)
		return result, nil
	}

	s.logger.Info("category deleted",
		"id", id,
		"policy", policy,
		"deleted_categories", result.DeletedCategories,
		"affected_children", result.AffectedChildren,
		"affected_rules", result.AffectedRules,
		"actor_id", actorID,
	)

	return result, nil
}

// PreviewDelete reports what a delete would affect
func (s *categoryService) PreviewDelete(ctx context.Context, id string) (*models.DeletePreview, error) {
	if !isID(id) {
		return nil, fmt.Errorf("category %q: %w", id, domain.ErrNotFound)
	}
	return s.deleter.Preview(ctx, id)
}

// RestoreCategory brings back a single soft-deleted category under its live parent
func (s *categoryService) RestoreCategory(ctx context.Context, id, actorID string) (*models.Category, error) {
	if !isID(id) {
		return nil, fmt.Errorf("deleted category %q: %w", id, domain.ErrNotFound)
	}
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor is required", domain.ErrValidation)
	}

	var restored *models.Category
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		category, err := s.categoryRepo.FindByID(txCtx, id, true)
		if err != nil {
			return fmt.Errorf("load category: %w", err)
		}
		if category == nil || !category.IsDeleted {
			return fmt.Errorf("deleted category %s: %w", id, domain.ErrNotFound)
		}

		depth, path, err := s.tree.Place(txCtx, category.ID, category.ParentID)
		if err != nil {
			return err
		}
		if err := s.tree.ValidateSlug(txCtx, category.Slug, category.ParentID, category.ID); err != nil {
			return err
		}

		category.Depth = depth
		category.Path = path
		category.UpdatedBy = actorID
		category.UpdatedAt = s.now()
		if err := s.categoryRepo.Restore(txCtx, category); err != nil {
			return err
		}

		category.IsDeleted = false
		category.DeletedAt = nil
		category.DeletedBy = nil
		restored = category
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("category restored", "id", id, "parent_id", restored.ParentID, "actor_id", actorID)
	return restored, nil
}

// ReorderCategories assigns sort order 0..n-1 in the given order
func (s *categoryService) ReorderCategories(ctx context.Context, req *taxSvc.ReorderRequest) error {
	if err := s.validateReorderRequest(req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.categoryRepo.UpdateSortOrders(txCtx, req.IDs, req.ActorID, s.now())
	})
	if err != nil {
		return err
	}

	s.logger.Info("categories reordered", "parent_id", req.ParentID, "count", len(req.IDs))
	return nil
}

// GetCategory retrieves a live category
func (s *categoryService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	if !isID(id) {
		return nil, fmt.Errorf("category %q: %w", id, domain.ErrNotFound)
	}

	category, err := s.categoryRepo.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	return category, nil
}

// GetCategoryBySlug retrieves a live category by slug within a parent scope
func (s *categoryService) GetCategoryBySlug(ctx context.Context, slugValue string, parentID *string) (*models.Category, error) {
	parentID = normalizeParent(parentID)
	if parentID != nil && !isID(*parentID) {
		return nil, fmt.Errorf("category %q: %w", slugValue, domain.ErrNotFound)
	}

	category, err := s.categoryRepo.FindBySlug(ctx, slugValue, parentID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("category %q: %w", slugValue, domain.ErrNotFound)
	}
	return category, nil
}

// ListRoots lists root categories
func (s *categoryService) ListRoots(ctx context.Context, opts models.ListOptions) ([]models.Category, error) {
	opts.IncludeDeleted = false
	return s.categoryRepo.FindRoots(ctx, opts)
}

// ListChildren lists the direct children of a live category
func (s *categoryService) ListChildren(ctx context.Context, parentID string, opts models.ListOptions) ([]models.Category, error) {
	if _, err := s.GetCategory(ctx, parentID); err != nil {
		return nil, err
	}
	opts.IncludeDeleted = false
	return s.categoryRepo.FindChildren(ctx, parentID, opts)
}

// GetTree returns the live forest flattened so parents precede children
func (s *categoryService) GetTree(ctx context.Context, opts models.ListOptions) ([]models.Category, error) {
	roots, err := s.GetNestedTree(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := []models.Category{}
	flattenTree(roots, &result)
	return result, nil
}

// GetNestedTree returns the live forest as nested nodes in display order
func (s *categoryService) GetNestedTree(ctx context.Context, opts models.ListOptions) ([]*models.CategoryNode, error) {
	opts.IncludeDeleted = false
	all, err := s.categoryRepo.GetAll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return buildTree(all), nil
}

// GetAncestors lists ancestors root first
func (s *categoryService) GetAncestors(ctx context.Context, id string) ([]models.Category, error) {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	return s.categoryRepo.GetAncestors(ctx, id)
}

// GetDescendants lists descendants ordered by depth then path
func (s *categoryService) GetDescendants(ctx context.Context, id string, opts models.ListOptions) ([]models.Category, error) {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return nil, err
	}

	descendants, err := s.categoryRepo.GetDescendants(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if opts.IncludeInactive {
		return descendants, nil
	}
	return visibleDescendants(id, descendants), nil
}

// Search finds categories by text
func (s *categoryService) Search(ctx context.Context, opts *models.SearchOptions) ([]models.SearchResult, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return s.categoryRepo.Search(ctx, opts)
}

// ListDeleted lists soft-deleted categories
func (s *categoryService) ListDeleted(ctx context.Context) ([]models.Category, error) {
	return s.categoryRepo.FindDeleted(ctx)
}

// VerifyIntegrity audits the tree and rule references
func (s *categoryService) VerifyIntegrity(ctx context.Context) (*models.IntegrityReport, error) {
	return s.tree.Verify(ctx, s.ruleRepo)
}

// lockLive loads and locks a live category, mapping absence to ErrNotFound
func (s *categoryService) lockLive(ctx context.Context, id string) (*models.Category, error) {
	if !isID(id) {
		return nil, fmt.Errorf("category %q: %w", id, domain.ErrNotFound)
	}
	category, err := s.categoryRepo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	if category == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	return category, nil
}

// countSiblings counts live siblings in a scope, active or not
func (s *categoryService) countSiblings(ctx context.Context, parentID *string) (int, error) {
	if parentID == nil {
		roots, err := s.categoryRepo.FindRoots(ctx, models.ListOptions{IncludeInactive: true})
		if err != nil {
			return 0, fmt.Errorf("count root categories: %w", err)
		}
		return len(roots), nil
	}
	return s.categoryRepo.CountChildren(ctx, *parentID)
}

// applyUpdate copies the present fields of req onto category
func applyUpdate(category *models.Category, req *taxSvc.UpdateCategoryRequest) {
	if req.Slug != nil {
		category.Slug = strings.TrimSpace(*req.Slug)
	}
	if req.Name != nil {
		category.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	if req.Icon != nil {
		category.Icon = *req.Icon
	}
	if req.Color != nil {
		category.Color = *req.Color
	}
	if req.SortOrder != nil {
		category.SortOrder = *req.SortOrder
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}
}

// validateCreateRequest validates a category creation request
func (s *categoryService) validateCreateRequest(req *taxSvc.CreateCategoryRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, config.MaxCategoryNameLength),
		),
		validation.Field(&req.Slug,
			validation.Required.Error("cannot be derived from the name; provide one"),
			validation.Length(1, config.MaxSlugLength),
			validation.Match(slugPattern).Error("must be lowercase letters, digits and single hyphens"),
		),
		validation.Field(&req.Description, validation.Length(0, config.MaxDescriptionLength)),
		validation.Field(&req.Icon, validation.Length(0, config.MaxIconLength)),
		validation.Field(&req.Color, validation.Match(colorPattern).Error("must be a #rrggbb hex color")),
		validation.Field(&req.SortOrder, validation.Min(0)),
		validation.Field(&req.ActorID, validation.Required),
	)
}

// validateUpdateRequest validates a partial category update
func (s *categoryService) validateUpdateRequest(req *taxSvc.UpdateCategoryRequest) error {
	// At least one field must be provided
	if !req.HasChanges() {
		return fmt.Errorf("at least one field must be provided")
	}

	rules := []*validation.FieldRules{
		validation.Field(&req.ActorID, validation.Required),
	}

	if req.Name != nil {
		rules = append(rules, validation.Field(&req.Name,
			validation.By(trimmedRequired),
			validation.Length(1, config.MaxCategoryNameLength),
		))
	}
	if req.Slug != nil {
		rules = append(rules, validation.Field(&req.Slug,
			validation.Required,
			validation.Length(1, config.MaxSlugLength),
			validation.Match(slugPattern).Error("must be lowercase letters, digits and single hyphens"),
		))
	}
	if req.Description != nil {
		rules = append(rules, validation.Field(&req.Description, validation.Length(0, config.MaxDescriptionLength)))
	}
	if req.Icon != nil {
		rules = append(rules, validation.Field(&req.Icon, validation.Length(0, config.MaxIconLength)))
	}
	if req.Color != nil {
		rules = append(rules, validation.Field(&req.Color, validation.Match(colorPattern).Error("must be a #rrggbb hex color")))
	}
	if req.SortOrder != nil {
		rules = append(rules, validation.Field(&req.SortOrder, validation.Min(0)))
	}

	return validation.ValidateStruct(req, rules...)
}

// validateReorderRequest validates a reorder request
func (s *categoryService) validateReorderRequest(req *taxSvc.ReorderRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.IDs,
			validation.Required,
			validation.Length(1, config.MaxReorderBatch),
			validation.Each(is.UUID),
		),
		validation.Field(&req.ParentID, is.UUID),
		validation.Field(&req.ActorID, validation.Required),
	)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		if seen[id] {
			return fmt.Errorf("ids: %s appears more than once", id)
		}
		seen[id] = true
	}
	return nil
}

// trimmedRequired rejects strings that are empty after trimming
func trimmedRequired(value interface{}) error {
	s, ok := value.(*string)
	if !ok || s == nil || strings.TrimSpace(*s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// normalizeParent maps an empty parent id to nil (root)
func normalizeParent(parentID *string) *string {
	if parentID != nil && *parentID == "" {
		return nil
	}
	return parentID
}

func sameParent(a, b *string) bool {
	a, b = normalizeParent(a), normalizeParent(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
