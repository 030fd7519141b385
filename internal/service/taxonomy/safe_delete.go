package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"canopy/internal/domain"
	models "canopy/internal/domain/models/taxonomy"
	taxRepo "canopy/internal/domain/repositories/taxonomy"
)

// SafeDeleteEngine soft-deletes categories under a DeletePolicy.
// Whatever the policy, no rule is left pointing at a deleted category.
// Delete must run inside a transaction.
type SafeDeleteEngine struct {
	categories taxRepo.CategoryRepository
	rules      taxRepo.RuleRepository
	tree       *TreeEngine
	logger     *slog.Logger
}

// NewSafeDeleteEngine creates a delete engine that re-parents through the tree engine
func NewSafeDeleteEngine(
	categories taxRepo.CategoryRepository,
	rules taxRepo.RuleRepository,
	tree *TreeEngine,
	logger *slog.Logger,
) *SafeDeleteEngine {
	return &SafeDeleteEngine{
		categories: categories,
		rules:      rules,
		tree:       tree,
		logger:     logger,
	}
}

// Preview counts what a delete of id would touch
func (e *SafeDeleteEngine) Preview(ctx context.Context, id string) (*models.DeletePreview, error) {
	target, err := e.categories.FindByID(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}

	childCount, ruleCount, err := e.counts(ctx, id)
	if err != nil {
		return nil, err
	}

	descendants, err := e.categories.GetDescendants(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("load subtree: %w", err)
	}
	subtreeRules, err := e.rules.CountByCategories(ctx, subtreeIDs(target, descendants))
	if err != nil {
		return nil, fmt.Errorf("count subtree rules: %w", err)
	}

	return &models.DeletePreview{
		CategoryID:      id,
		ChildCount:      childCount,
		DescendantCount: len(descendants),
		RuleCount:       ruleCount,
		SubtreeRules:    subtreeRules,
		Blocked:         childCount > 0 || ruleCount > 0,
	}, nil
}

// Delete applies policy to the category id
func (e *SafeDeleteEngine) Delete(ctx context.Context, id string, policy models.DeletePolicy, actorID string, at time.Time) (*models.DeleteResult, error) {
	target, err := e.categories.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}

	childCount, ruleCount, err := e.counts(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &models.DeleteResult{
		Policy:           policy,
		AffectedChildren: childCount,
	}

	switch policy {
	case models.DeletePolicyBlock:
		err = e.block(ctx, target, childCount, ruleCount, actorID, at, result)
	case models.DeletePolicyReassign:
		err = e.reassign(ctx, target, actorID, at, result)
	case models.DeletePolicyCascade:
		err = e.cascade(ctx, target, actorID, at, result)
	default:
		err = fmt.Errorf("%w: unknown delete policy %q", domain.ErrValidation, policy)
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// block refuses while anything hangs off the target, otherwise deletes the bare node
func (e *SafeDeleteEngine) block(ctx context.Context, target *models.Category, childCount, ruleCount int, actorID string, at time.Time, result *models.DeleteResult) error {
	result.AffectedRules = ruleCount

	if childCount > 0 || ruleCount > 0 {
		result.Success = false
		result.Message = fmt.Sprintf("category %q has %d child categories and %d rules; move or remove them first, or delete with policy reassign or cascade",
			target.Name, childCount, ruleCount)
		return nil
	}

	deleted, err := e.categories.SoftDelete(ctx, []string{target.ID}, actorID, at)
	if err != nil {
		return err
	}

	result.Success = true
	result.DeletedCategories = deleted
	result.Message = fmt.Sprintf("category %q deleted", target.Name)
	return nil
}

// reassign lifts children and rules to the target's parent, then leaves the target deleted
func (e *SafeDeleteEngine) reassign(ctx context.Context, target *models.Category, actorID string, at time.Time, result *models.DeleteResult) error {
	children, err := e.categories.FindChildren(ctx, target.ID, models.ListOptions{IncludeInactive: true})
	if err != nil {
		return fmt.Errorf("list children: %w", err)
	}

	// Deleting first frees the target's slug in its parent's scope
	deleted, err := e.categories.SoftDelete(ctx, []string{target.ID}, actorID, at)
	if err != nil {
		return err
	}

	for i := range children {
		child := &children[i]
		if err := e.tree.ValidateSlug(ctx, child.Slug, target.ParentID, child.ID); err != nil {
			return err
		}
		plan, err := e.tree.PlanMove(ctx, child, target.ParentID)
		if err != nil {
			return err
		}
		if err := e.tree.ApplyMove(ctx, plan, actorID, at); err != nil {
			return err
		}
	}

	reassigned, err := e.rules.ReassignCategory(ctx, target.ID, target.ParentID)
	if err != nil {
		return err
	}

	destination := "the top level"
	if target.ParentID != nil {
		destination = "the parent category"
	}

	result.Success = true
	result.AffectedRules = reassigned
	result.DeletedCategories = deleted
	result.Message = fmt.Sprintf("category %q deleted; %d child categories and %d rules moved to %s",
		target.Name, len(children), reassigned, destination)
	return nil
}

// cascade deletes the whole live subtree and detaches every rule pointing into it
func (e *SafeDeleteEngine) cascade(ctx context.Context, target *models.Category, actorID string, at time.Time, result *models.DeleteResult) error {
	descendants, err := e.categories.GetDescendants(ctx, target.ID, true)
	if err != nil {
		return fmt.Errorf("load subtree: %w", err)
	}

	ids := subtreeIDs(target, descendants)

	deleted, err := e.categories.SoftDelete(ctx, ids, actorID, at)
	if err != nil {
		return err
	}

	detached, err := e.rules.DetachCategories(ctx, ids)
	if err != nil {
		return err
	}

	result.Success = true
	result.AffectedRules = detached
	result.DeletedCategories = deleted
	result.Message = fmt.Sprintf("category %q and %d descendants deleted; %d rules uncategorized",
		target.Name, len(descendants), detached)
	return nil
}

// counts returns live direct children and rules pointing at id
func (e *SafeDeleteEngine) counts(ctx context.Context, id string) (childCount, ruleCount int, err error) {
	childCount, err = e.categories.CountChildren(ctx, id)
	if err != nil {
		return 0, 0, fmt.Errorf("count children: %w", err)
	}
	ruleCount, err = e.rules.CountByCategory(ctx, id)
	if err != nil {
		return 0, 0, fmt.Errorf("count rules: %w", err)
	}
	return childCount, ruleCount, nil
}

func subtreeIDs(target *models.Category, descendants []models.Category) []string {
	ids := make([]string, 0, len(descendants)+1)
	ids = append(ids, target.ID)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}
	return ids
}
