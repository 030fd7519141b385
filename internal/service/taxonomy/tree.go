package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"canopy/internal/domain"
	models "canopy/internal/domain/models/taxonomy"
	taxRepo "canopy/internal/domain/repositories/taxonomy"

	"github.com/google/uuid"
)

// TreeEngine owns depth and path.
// Every structural write (create, move, restore) goes through it so the
// three placement fields stay in lockstep.
type TreeEngine struct {
	categories taxRepo.CategoryRepository
	maxDepth   int
	logger     *slog.Logger
}

// NewTreeEngine creates a tree engine with the deepest allowed depth (root = 0)
func NewTreeEngine(categories taxRepo.CategoryRepository, maxDepth int, logger *slog.Logger) *TreeEngine {
	return &TreeEngine{
		categories: categories,
		maxDepth:   maxDepth,
		logger:     logger,
	}
}

// Place computes depth and path for a node with the given id placed under parentID.
// The parent must be live; its row is locked for the rest of the transaction.
func (e *TreeEngine) Place(ctx context.Context, id string, parentID *string) (depth int, path string, err error) {
	if parentID == nil {
		return 0, models.RootPath(id), nil
	}

	parent, err := e.liveParent(ctx, *parentID)
	if err != nil {
		return 0, "", err
	}

	depth = parent.Depth + 1
	if depth > e.maxDepth {
		return 0, "", fmt.Errorf("parent %s is at depth %d, limit is %d: %w",
			parent.ID, parent.Depth, e.maxDepth, domain.ErrMaxDepthExceeded)
	}

	return depth, models.ChildPath(parent.Path, id), nil
}

// ValidateSlug checks that no live sibling under parentID other than selfID uses slug
func (e *TreeEngine) ValidateSlug(ctx context.Context, slug string, parentID *string, selfID string) error {
	existing, err := e.categories.FindBySlug(ctx, slug, parentID)
	if err != nil {
		return fmt.Errorf("check slug: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return domain.NewDuplicateSlugError(slug, existing.ID)
	}
	return nil
}

// MovePlan is a validated re-parenting of a node and its live subtree
type MovePlan struct {
	Node        *models.Category // carries the new ParentID, Depth and Path
	OldPath     string
	DepthDelta  int
	Descendants int
}

// PlanMove validates moving node under newParentID and returns the rewrite to apply.
// The descendant set is read (and locked) inside the caller's transaction, so a
// concurrent move cannot slip a cycle past the check.
func (e *TreeEngine) PlanMove(ctx context.Context, node *models.Category, newParentID *string) (*MovePlan, error) {
	descendants, err := e.categories.GetDescendants(ctx, node.ID, true)
	if err != nil {
		return nil, fmt.Errorf("load subtree: %w", err)
	}

	if newParentID != nil {
		if *newParentID == node.ID {
			return nil, fmt.Errorf("category %s under itself: %w", node.ID, domain.ErrCyclicMove)
		}
		for _, d := range descendants {
			if d.ID == *newParentID {
				return nil, fmt.Errorf("category %s under its descendant %s: %w", node.ID, d.ID, domain.ErrCyclicMove)
			}
		}
	}

	newDepth, newPath, err := e.Place(ctx, node.ID, newParentID)
	if err != nil {
		return nil, err
	}

	maxRelative := 0
	for _, d := range descendants {
		if rel := d.Depth - node.Depth; rel > maxRelative {
			maxRelative = rel
		}
	}
	if newDepth+maxRelative > e.maxDepth {
		return nil, fmt.Errorf("subtree of %s would reach depth %d, limit is %d: %w",
			node.ID, newDepth+maxRelative, e.maxDepth, domain.ErrMaxDepthExceeded)
	}

	moved := *node
	moved.ParentID = newParentID
	moved.Depth = newDepth
	moved.Path = newPath

	return &MovePlan{
		Node:        &moved,
		OldPath:     node.Path,
		DepthDelta:  newDepth - node.Depth,
		Descendants: len(descendants),
	}, nil
}

// ApplyMove writes the moved node, then rewrites its whole live subtree in one statement
func (e *TreeEngine) ApplyMove(ctx context.Context, plan *MovePlan, actorID string, at time.Time) error {
	plan.Node.UpdatedBy = actorID
	plan.Node.UpdatedAt = at
	if err := e.categories.Update(ctx, plan.Node); err != nil {
		return err
	}

	if plan.Descendants == 0 {
		return nil
	}

	rewritten, err := e.categories.RewriteSubtree(ctx,
		models.DescendantPrefix(plan.OldPath),
		models.DescendantPrefix(plan.Node.Path),
		plan.DepthDelta,
		actorID,
		at,
	)
	if err != nil {
		return err
	}

	e.logger.Debug("subtree rewritten",
		"category_id", plan.Node.ID,
		"old_path", plan.OldPath,
		"new_path", plan.Node.Path,
		"depth_delta", plan.DepthDelta,
		"rows", rewritten,
	)
	return nil
}

// liveParent loads and locks a parent, mapping missing, deleted or malformed ids to ErrParentNotFound
func (e *TreeEngine) liveParent(ctx context.Context, parentID string) (*models.Category, error) {
	if !isID(parentID) {
		return nil, fmt.Errorf("parent %q: %w", parentID, domain.ErrParentNotFound)
	}

	parent, err := e.categories.FindByIDForUpdate(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("load parent: %w", err)
	}
	if parent == nil {
		return nil, fmt.Errorf("parent %s: %w", parentID, domain.ErrParentNotFound)
	}
	return parent, nil
}

// isID reports whether s is a well-formed category id
func isID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
