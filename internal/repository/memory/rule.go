package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	models "canopy/internal/domain/models/taxonomy"
	taxRepo "canopy/internal/domain/repositories/taxonomy"

	"github.com/google/uuid"
)

// RuleRepository implements taxRepo.RuleRepository over a Store
type RuleRepository struct {
	store *Store
}

// NewRuleRepository creates a rule repository backed by the store
func NewRuleRepository(store *Store) taxRepo.RuleRepository {
	return &RuleRepository{store: store}
}

// PutRule inserts or replaces a rule. Rules are owned by another system;
// this is how fixtures and local runs populate the table.
// The referenced category, if any, must exist and be live.
func (s *Store) PutRule(ctx context.Context, rule *models.Rule) (*models.Rule, error) {
	defer s.lock(ctx)()

	if rule.CategoryID != nil {
		target, ok := s.categories[*rule.CategoryID]
		if !ok {
			return nil, fmt.Errorf("rule %s references unknown category %s", rule.ID, *rule.CategoryID)
		}
		if target.IsDeleted {
			return nil, fmt.Errorf("rule %s references deleted category %s", rule.ID, *rule.CategoryID)
		}
	}

	row := cloneRule(rule)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	s.rules[row.ID] = &row

	out := cloneRule(&row)
	return &out, nil
}

// CountByCategory counts rules pointing at a category
func (r *RuleRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	return r.CountByCategories(ctx, []string{categoryID})
}

// CountByCategories counts rules pointing at any of the categories
func (r *RuleRepository) CountByCategories(ctx context.Context, categoryIDs []string) (int, error) {
	defer r.store.lock(ctx)()

	set := toSet(categoryIDs)
	count := 0
	for _, rule := range r.store.rules {
		if rule.CategoryID != nil && set[*rule.CategoryID] {
			count++
		}
	}
	return count, nil
}

// ListByCategory lists rules pointing at a category
func (r *RuleRepository) ListByCategory(ctx context.Context, categoryID string) ([]models.Rule, error) {
	defer r.store.lock(ctx)()

	out := []models.Rule{}
	for _, rule := range r.store.rules {
		if rule.CategoryID != nil && *rule.CategoryID == categoryID {
			out = append(out, cloneRule(rule))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReassignCategory re-points rules from one category to another (nil = uncategorized)
func (r *RuleRepository) ReassignCategory(ctx context.Context, fromID string, toID *string) (int, error) {
	defer r.store.lock(ctx)()

	now := time.Now().UTC()
	count := 0
	for _, rule := range r.store.rules {
		if rule.CategoryID != nil && *rule.CategoryID == fromID {
			rule.CategoryID = copyString(toID)
			rule.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// DetachCategories clears the category of rules pointing at any of the categories
func (r *RuleRepository) DetachCategories(ctx context.Context, categoryIDs []string) (int, error) {
	defer r.store.lock(ctx)()

	set := toSet(categoryIDs)
	now := time.Now().UTC()
	count := 0
	for _, rule := range r.store.rules {
		if rule.CategoryID != nil && set[*rule.CategoryID] {
			rule.CategoryID = nil
			rule.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// ListCategorized lists every rule that references a category
func (r *RuleRepository) ListCategorized(ctx context.Context) ([]models.Rule, error) {
	defer r.store.lock(ctx)()

	out := []models.Rule{}
	for _, rule := range r.store.rules {
		if rule.CategoryID != nil {
			out = append(out, cloneRule(rule))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
