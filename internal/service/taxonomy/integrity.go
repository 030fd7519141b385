package taxonomy

import (
	"context"
	"fmt"

	models "canopy/internal/domain/models/taxonomy"
	taxRepo "canopy/internal/domain/repositories/taxonomy"
)

// Verify audits every category row and rule reference against the tree invariants
func (e *TreeEngine) Verify(ctx context.Context, rules taxRepo.RuleRepository) (*models.IntegrityReport, error) {
	all, err := e.categories.GetAll(ctx, models.ListOptions{IncludeInactive: true, IncludeDeleted: true})
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	categorized, err := rules.ListCategorized(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	byID := make(map[string]*models.Category, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	report := &models.IntegrityReport{
		CategoriesChecked: len(all),
		RulesChecked:      len(categorized),
		Violations:        []models.Violation{},
	}
	add := func(kind models.ViolationKind, categoryID, detail string) {
		report.Violations = append(report.Violations, models.Violation{
			Kind:       kind,
			CategoryID: categoryID,
			Detail:     detail,
		})
	}

	type scope struct{ parent, slug string }
	slugOwners := make(map[scope]string)

	for i := range all {
		c := &all[i]
		if c.IsDeleted {
			continue
		}

		if c.Depth < 0 || c.Depth > e.maxDepth {
			add(models.ViolationDepthRange, c.ID, fmt.Sprintf("depth %d outside 0..%d", c.Depth, e.maxDepth))
		}

		if c.ParentID == nil {
			if c.Depth != 0 {
				add(models.ViolationDepthMismatch, c.ID, fmt.Sprintf("root has depth %d", c.Depth))
			}
			if want := models.RootPath(c.ID); c.Path != want {
				add(models.ViolationPathMismatch, c.ID, fmt.Sprintf("path %q, expected %q", c.Path, want))
			}
		} else if parent, ok := byID[*c.ParentID]; !ok || parent.IsDeleted {
			add(models.ViolationOrphan, c.ID, fmt.Sprintf("parent %s is missing or deleted", *c.ParentID))
		} else {
			if c.Depth != parent.Depth+1 {
				add(models.ViolationDepthMismatch, c.ID, fmt.Sprintf("depth %d, parent depth %d", c.Depth, parent.Depth))
			}
			if want := models.ChildPath(parent.Path, c.ID); c.Path != want {
				add(models.ViolationPathMismatch, c.ID, fmt.Sprintf("path %q, expected %q", c.Path, want))
			}
		}

		if onCycle(c, byID) {
			add(models.ViolationCycle, c.ID, "category is its own ancestor")
		}

		key := scope{slug: c.Slug}
		if c.ParentID != nil {
			key.parent = *c.ParentID
		}
		if owner, taken := slugOwners[key]; taken {
			add(models.ViolationDuplicateSlug, c.ID, fmt.Sprintf("slug %q also used by %s", c.Slug, owner))
		} else {
			slugOwners[key] = c.ID
		}
	}

	for _, rule := range categorized {
		target, ok := byID[*rule.CategoryID]
		if ok && !target.IsDeleted {
			continue
		}
		report.Violations = append(report.Violations, models.Violation{
			Kind:       models.ViolationDanglingRule,
			CategoryID: *rule.CategoryID,
			RuleID:     rule.ID,
			Detail:     "rule references a missing or deleted category",
		})
	}

	if !report.OK() {
		e.logger.Warn("integrity violations found", "count", len(report.Violations))
	}
	return report, nil
}

// onCycle follows parent links from c and reports whether they lead back to c
func onCycle(c *models.Category, byID map[string]*models.Category) bool {
	steps := 0
	for cur := c; cur.ParentID != nil && steps <= len(byID); steps++ {
		next, ok := byID[*cur.ParentID]
		if !ok {
			return false
		}
		if next.ID == c.ID {
			return true
		}
		cur = next
	}
	return false
}
