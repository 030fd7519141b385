package taxonomy

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"canopy/internal/domain"
	models "canopy/internal/domain/models/taxonomy"
	taxRepo "canopy/internal/domain/repositories/taxonomy"
	taxSvc "canopy/internal/domain/services/taxonomy"
	"canopy/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testActor = "00000000-0000-0000-0000-00000000000a"

type fixture struct {
	svc        taxSvc.CategoryService
	store      *memory.Store
	categories taxRepo.CategoryRepository
	rules      taxRepo.RuleRepository
}

func newFixture(t *testing.T, maxDepth int) *fixture {
	t.Helper()

	store := memory.NewStore()
	categories := memory.NewCategoryRepository(store)
	rules := memory.NewRuleRepository(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		svc:        NewCategoryService(categories, rules, memory.NewTransactionManager(store), maxDepth, logger),
		store:      store,
		categories: categories,
		rules:      rules,
	}
}

func (f *fixture) create(t *testing.T, name string, parent *models.Category) *models.Category {
	t.Helper()

	req := &taxSvc.CreateCategoryRequest{Name: name, ActorID: testActor}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	c, err := f.svc.CreateCategory(context.Background(), req)
	require.NoError(t, err)
	return c
}

func (f *fixture) rule(t *testing.T, name string, category *models.Category) *models.Rule {
	t.Helper()

	r := &models.Rule{Name: name}
	if category != nil {
		r.CategoryID = &category.ID
	}
	out, err := f.store.PutRule(context.Background(), r)
	require.NoError(t, err)
	return out
}

func (f *fixture) get(t *testing.T, id string) *models.Category {
	t.Helper()

	c, err := f.categories.FindByID(context.Background(), id, true)
	require.NoError(t, err)
	require.NotNil(t, c, "category %s should exist", id)
	return c
}

// dump captures every category and categorized rule, for before/after comparisons
func (f *fixture) dump(t *testing.T) ([]models.Category, []models.Rule) {
	t.Helper()

	ctx := context.Background()
	all, err := f.categories.GetAll(ctx, models.ListOptions{IncludeInactive: true, IncludeDeleted: true})
	require.NoError(t, err)
	rules, err := f.rules.ListCategorized(ctx)
	require.NoError(t, err)
	return all, rules
}

func (f *fixture) assertIntegrity(t *testing.T) {
	t.Helper()

	report, err := f.svc.VerifyIntegrity(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Violations)
}

func ptr[T any](v T) *T {
	return &v
}

func TestCreateCategory_RootAndChild(t *testing.T) {
	f := newFixture(t, 4)

	root := f.create(t, "Faith", nil)
	assert.Equal(t, "faith", root.Slug)
	assert.Equal(t, 0, root.Depth)
	assert.Nil(t, root.ParentID)
	assert.Equal(t, "/"+root.ID, root.Path)
	assert.True(t, root.IsActive)

	child := f.create(t, "Prayer", root)
	assert.Equal(t, "prayer", child.Slug)
	assert.Equal(t, 1, child.Depth)
	assert.Equal(t, root.ID, *child.ParentID)
	assert.Equal(t, "/"+root.ID+"/"+child.ID, child.Path)
	assert.Equal(t, testActor, child.CreatedBy)

	f.assertIntegrity(t)
}

func TestCreateCategory_MaxDepthExceeded(t *testing.T) {
	f := newFixture(t, 4)

	node := f.create(t, "Level 0", nil)
	for _, name := range []string{"Level 1", "Level 2", "Level 3", "Level 4"} {
		node = f.create(t, name, node)
	}
	require.Equal(t, 4, node.Depth)

	before, _ := f.dump(t)

	_, err := f.svc.CreateCategory(context.Background(), &taxSvc.CreateCategoryRequest{
		Name:     "Level 5",
		ParentID: &node.ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, domain.ErrMaxDepthExceeded)

	after, _ := f.dump(t)
	assert.Equal(t, before, after, "no row should be written")
}

func TestCreateCategory_ConfiguredDepthCeiling(t *testing.T) {
	f := newFixture(t, 1)

	root := f.create(t, "Root", nil)
	child := f.create(t, "Child", root)

	_, err := f.svc.CreateCategory(context.Background(), &taxSvc.CreateCategoryRequest{
		Name:     "Grandchild",
		ParentID: &child.ID,
		ActorID:  testActor,
	})
	assert.ErrorIs(t, err, domain.ErrMaxDepthExceeded)
}

func TestCreateCategory_SlugScope(t *testing.T) {
	f := newFixture(t, 4)

	a := f.create(t, "Alpha", nil)
	b := f.create(t, "Beta", nil)

	// Same slug under different parents is fine
	f.create(t, "Shared", a)
	f.create(t, "Shared", b)

	_, err := f.svc.CreateCategory(context.Background(), &taxSvc.CreateCategoryRequest{
		Name:     "Shared Again",
		Slug:     "shared",
		ParentID: &a.ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, domain.ErrDuplicateSlug)
	assert.ErrorIs(t, err, domain.ErrConflict)

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.NotEmpty(t, conflict.ResourceID)

	// Root scope is its own scope
	_, err = f.svc.CreateCategory(context.Background(), &taxSvc.CreateCategoryRequest{
		Name:    "Alpha",
		ActorID: testActor,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateSlug)
}

func TestCreateCategory_ParentNotFound(t *testing.T) {
	f := newFixture(t, 4)

	deleted := f.create(t, "Gone", nil)
	_, err := f.svc.DeleteCategory(context.Background(), deleted.ID, models.DeletePolicyBlock, testActor)
	require.NoError(t, err)

	tests := []struct {
		name     string
		parentID string
	}{
		{name: "unknown id", parentID: uuid.NewString()},
		{name: "deleted parent", parentID: deleted.ID},
		{name: "malformed id", parentID: "not-a-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCategory(context.Background(), &taxSvc.CreateCategoryRequest{
				Name:     "Orphan",
				ParentID: ptr(tt.parentID),
				ActorID:  testActor,
			})
			assert.ErrorIs(t, err, domain.ErrParentNotFound)
		})
	}
}

func TestCreateCategory_Validation(t *testing.T) {
	f := newFixture(t, 4)

	tests := []struct {
		name string
		req  taxSvc.CreateCategoryRequest
	}{
		{name: "missing name", req: taxSvc.CreateCategoryRequest{ActorID: testActor}},
		{name: "name without slug characters", req: taxSvc.CreateCategoryRequest{Name: "!!!", ActorID: testActor}},
		{name: "bad slug", req: taxSvc.CreateCategoryRequest{Name: "Food", Slug: "Food Stuff", ActorID: testActor}},
		{name: "bad color", req: taxSvc.CreateCategoryRequest{Name: "Food", Color: "red", ActorID: testActor}},
		{name: "negative sort order", req: taxSvc.CreateCategoryRequest{Name: "Food", SortOrder: ptr(-1), ActorID: testActor}},
		{name: "missing actor", req: taxSvc.CreateCategoryRequest{Name: "Food"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.svc.CreateCategory(context.Background(), &req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateCategory_SortOrderAppends(t *testing.T) {
	f := newFixture(t, 4)

	root := f.create(t, "Root", nil)
	first := f.create(t, "First", root)
	second := f.create(t, "Second", root)

	assert.Equal(t, 0, first.SortOrder)
	assert.Equal(t, 1, second.SortOrder)
}

func TestUpdateCategory_MoveRewritesSubtree(t *testing.T) {
	f := newFixture(t, 4)

	a := f.create(t, "A", nil)
	b := f.create(t, "B", a)
	c := f.create(t, "C", b)
	x := f.create(t, "X", nil)

	moved, err := f.svc.UpdateCategory(context.Background(), b.ID, &taxSvc.UpdateCategoryRequest{
		ParentID: taxSvc.OptionalParent{Present: true, Value: &x.ID},
		ActorID:  testActor,
	})
	require.NoError(t, err)
	assert.Equal(t, x.ID, *moved.ParentID)
	assert.Equal(t, 1, moved.Depth)
	assert.Equal(t, "/"+x.ID+"/"+b.ID, moved.Path)

	gotC := f.get(t, c.ID)
	assert.Equal(t, 2, gotC.Depth)
	assert.Equal(t, "/"+x.ID+"/"+b.ID+"/"+c.ID, gotC.Path)

	// Move to root
	moved, err = f.svc.UpdateCategory(context.Background(), b.ID, &taxSvc.UpdateCategoryRequest{
		ParentID: taxSvc.OptionalParent{Present: true, Value: nil},
		ActorID:  testActor,
	})
	require.NoError(t, err)
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, 0, moved.Depth)
	assert.Equal(t, "/"+b.ID+"/"+c.ID, f.get(t, c.ID).Path)
	assert.Equal(t, 1, f.get(t, c.ID).Depth)

	f.assertIntegrity(t)
}

func TestUpdateCategory_CyclicMove(t *testing.T) {
	f := newFixture(t, 4)

	root := f.create(t, "Root", nil)
	a := f.create(t, "A", root)
	mid := f.create(t, "Mid", a)
	b := f.create(t, "B", mid)
	require.Equal(t, 3, b.Depth)

	before, _ := f.dump(t)

	tests := []struct {
		name     string
		parentID string
	}{
		{name: "under own grandchild", parentID: b.ID},
		{name: "under itself", parentID: a.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateCategory(context.Background(), a.ID, &taxSvc.UpdateCategoryRequest{
				ParentID: taxSvc.OptionalParent{Present: true, Value: ptr(tt.parentID)},
				ActorID:  testActor,
			})
			assert.ErrorIs(t, err, domain.ErrCyclicMove)
		})
	}

	after, _ := f.dump(t)
	assert.Equal(t, before, after)
}

func TestUpdateCategory_MoveExceedsDepth(t *testing.T) {
	f := newFixture(t, 4)

	a := f.create(t, "A", nil)
	b := f.create(t, "B", a)
	f.create(t, "C", b)

	x := f.create(t, "X", nil)
	y := f.create(t, "Y", x)
	z := f.create(t, "Z", y)

	// A would land at depth 3 and its grandchild at 5
	_, err := f.svc.UpdateCategory(context.Background(), a.ID, &taxSvc.UpdateCategoryRequest{
		ParentID: taxSvc.OptionalParent{Present: true, Value: &z.ID},
		ActorID:  testActor,
	})
	assert.ErrorIs(t, err, domain.ErrMaxDepthExceeded)

	// Under Y the grandchild lands exactly at 4
	_, err = f.svc.UpdateCategory(context.Background(), a.ID, &taxSvc.UpdateCategoryRequest{
		ParentID: taxSvc.OptionalParent{Present: true, Value: &y.ID},
		ActorID:  testActor,
	})
	require.NoError(t, err)

	f.assertIntegrity(t)
}

func TestUpdateCategory_MoveRejectsSlugCollision(t *testing.T) {
	f := newFixture(t, 4)

	a := f.create(t, "A", nil)
	b := f.create(t, "B", nil)
	f.create(t, "Shared", a)
	moving := f.create(t, "Shared", b)

	_, err := f.svc.UpdateCategory(context.Background(), moving.ID, &taxSvc.UpdateCategoryRequest{
		ParentID: taxSvc.OptionalParent{Present: true, Value: &a.ID},
		ActorID:  testActor,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateSlug)
	assert.Equal(t, b.ID, *f.get(t, moving.ID).ParentID)
}

func TestUpdateCategory_Metadata(t *testing.T) {
	f := newFixture(t, 4)

	root := f.create(t, "Root", nil)
	f.create(t, "Taken", nil)

	updated, err := f.svc.UpdateCategory(context.Background(), root.ID, &taxSvc.UpdateCategoryRequest{
		Name:     ptr("  Renamed  "),
		Color:    ptr("#aabbcc"),
		IsActive: ptr(false),
		ActorID:  testActor,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "#aabbcc", updated.Color)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "root", updated.Slug)
	assert.Equal(t, root.Path, updated.Path)

	_, err = f.svc.UpdateCategory(context.Background(), root.ID, &taxSvc.UpdateCategoryRequest{
		Slug:    ptr("taken"),
		ActorID: testActor,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateSlug)
}

func TestUpdateCategory_Errors(t *testing.T) {
	f := newFixture(t, 4)
	root := f.create(t, "Root", nil)

	_, err := f.svc.UpdateCategory(context.Background(), uuid.NewString(), &taxSvc.UpdateCategoryRequest{
		Name:    ptr("x"),
		ActorID: testActor,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.UpdateCategory(context.Background(), root.ID, &taxSvc.UpdateCategoryRequest{ActorID: testActor})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.UpdateCategory(context.Background(), root.ID, &taxSvc.UpdateCategoryRequest{
		Name:    ptr("   "),
		ActorID: testActor,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.UpdateCategory(context.Background(), root.ID, &taxSvc.UpdateCategoryRequest{
		ParentID: taxSvc.OptionalParent{Present: true, Value: ptr(uuid.NewString())},
		ActorID:  testActor,
	})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestDeleteCategory_Reassign(t *testing.T) {
	tests := []struct {
		name      string
		hasParent bool
	}{
		{name: "target under a parent", hasParent: true},
		{name: "target is a root", hasParent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 4)
			ctx := context.Background()

			var grand *models.Category
			if tt.hasParent {
				grand = f.create(t, "Grand", nil)
			}
			parentX := f.create(t, "Parent X", grand)
			a := f.create(t, "A", parentX)
			b := f.create(t, "B", parentX)
			a1 := f.create(t, "A1", a)
			r1 := f.rule(t, "r1", parentX)

			result, err := f.svc.DeleteCategory(ctx, parentX.ID, models.DeletePolicyReassign, testActor)
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, models.DeletePolicyReassign, result.Policy)
			assert.Equal(t, 2, result.AffectedChildren)
			assert.Equal(t, 1, result.AffectedRules)
			assert.Equal(t, 1, result.DeletedCategories)

			gotX := f.get(t, parentX.ID)
			assert.True(t, gotX.IsDeleted)
			require.NotNil(t, gotX.DeletedBy)
			assert.Equal(t, testActor, *gotX.DeletedBy)

			wantDepth, wantPrefix := 0, ""
			if grand != nil {
				wantDepth, wantPrefix = 1, "/"+grand.ID
			}
			for _, child := range []*models.Category{a, b} {
				got := f.get(t, child.ID)
				assert.Equal(t, parentX.ParentID, got.ParentID)
				assert.Equal(t, wantDepth, got.Depth)
				assert.Equal(t, wantPrefix+"/"+child.ID, got.Path)
				assert.False(t, got.IsDeleted)
			}
			gotA1 := f.get(t, a1.ID)
			assert.Equal(t, wantDepth+1, gotA1.Depth)
			assert.Equal(t, wantPrefix+"/"+a.ID+"/"+a1.ID, gotA1.Path)

			count, err := f.rules.CountByCategory(ctx, parentX.ID)
			require.NoError(t, err)
			assert.Zero(t, count)

			if grand != nil {
				moved, err := f.rules.ListByCategory(ctx, grand.ID)
				require.NoError(t, err)
				require.Len(t, moved, 1)
				assert.Equal(t, r1.ID, moved[0].ID)
			} else {
				categorized, err := f.rules.ListCategorized(ctx)
				require.NoError(t, err)
				assert.Empty(t, categorized)
			}

			f.assertIntegrity(t)
		})
	}
}

func TestDeleteCategory_ReassignSlugCollisionRollsBack(t *testing.T) {
	f := newFixture(t, 4)

	root := f.create(t, "Root", nil)
	f.create(t, "Shared", root)
	target := f.create(t, "Target", root)
	f.create(t, "Shared", target)
	f.rule(t, "r1", target)

	before, beforeRules := f.dump(t)

	_, err := f.svc.DeleteCategory(context.Background(), target.ID, models.DeletePolicyReassign, testActor)
	require.ErrorIs(t, err, domain.ErrDuplicateSlug)

	after, afterRules := f.dump(t)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeRules, afterRules)
}

func TestDeleteCategory_BlockRefusesWithoutChanges(t *testing.T) {
	tests := []struct {
		name         string
		withChild    bool
		withRule     bool
		wantChildren int
		wantRules    int
	}{
		{name: "has child", withChild: true, wantChildren: 1},
		{name: "has rule", withRule: true, wantRules: 1},
		{name: "has both", withChild: true, withRule: true, wantChildren: 1, wantRules: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 4)

			target := f.create(t, "Target", nil)
			if tt.withChild {
				f.create(t, "Child", target)
			}
			if tt.withRule {
				f.rule(t, "r1", target)
			}

			before, beforeRules := f.dump(t)

			result, err := f.svc.DeleteCategory(context.Background(), target.ID, models.DeletePolicyBlock, testActor)
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Message)
			assert.Equal(t, tt.wantChildren, result.AffectedChildren)
			assert.Equal(t, tt.wantRules, result.AffectedRules)
			assert.Zero(t, result.DeletedCategories)

			after, afterRules := f.dump(t)
			assert.Equal(t, before, after)
			assert.Equal(t, beforeRules, afterRules)
		})
	}
}

func TestDeleteCategory_BlockLeaf(t *testing.T) {
	f := newFixture(t, 4)

	leaf := f.create(t, "Leaf", nil)

	result, err := f.svc.DeleteCategory(context.Background(), leaf.ID, models.DeletePolicyBlock, testActor)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.AffectedRules)
	assert.Zero(t, result.AffectedChildren)
	assert.Equal(t, 1, result.DeletedCategories)
	assert.True(t, f.get(t, leaf.ID).IsDeleted)

	// Deleting again is not found
	_, err = f.svc.DeleteCategory(context.Background(), leaf.ID, models.DeletePolicyBlock, testActor)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCategory_Cascade(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	root := f.create(t, "Root", nil)
	target := f.create(t, "Target", root)
	child := f.create(t, "Child", target)
	grandchild := f.create(t, "Grandchild", child)
	sibling := f.create(t, "Sibling", root)

	f.rule(t, "on target", target)
	f.rule(t, "on grandchild", grandchild)
	kept := f.rule(t, "on sibling", sibling)

	result, err := f.svc.DeleteCategory(ctx, target.ID, models.DeletePolicyCascade, testActor)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.DeletedCategories)
	assert.Equal(t, 2, result.AffectedRules)
	assert.Equal(t, 1, result.AffectedChildren)

	for _, id := range []string{target.ID, child.ID, grandchild.ID} {
		assert.True(t, f.get(t, id).IsDeleted, "category %s should be deleted", id)
	}
	assert.False(t, f.get(t, sibling.ID).IsDeleted)

	categorized, err := f.rules.ListCategorized(ctx)
	require.NoError(t, err)
	require.Len(t, categorized, 1)
	assert.Equal(t, kept.ID, categorized[0].ID)

	f.assertIntegrity(t)
}

func TestDeleteCategory_Errors(t *testing.T) {
	f := newFixture(t, 4)
	leaf := f.create(t, "Leaf", nil)

	_, err := f.svc.DeleteCategory(context.Background(), uuid.NewString(), models.DeletePolicyCascade, testActor)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.DeleteCategory(context.Background(), leaf.ID, models.DeletePolicy("purge"), testActor)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Empty policy means the default
	result, err := f.svc.DeleteCategory(context.Background(), leaf.ID, "", testActor)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDeletePolicy, result.Policy)
}

func TestPreviewDelete(t *testing.T) {
	f := newFixture(t, 4)

	root := f.create(t, "Root", nil)
	child := f.create(t, "Child", root)
	f.create(t, "Grandchild", child)
	f.rule(t, "on root", root)
	f.rule(t, "on child", child)

	preview, err := f.svc.PreviewDelete(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, preview.ChildCount)
	assert.Equal(t, 2, preview.DescendantCount)
	assert.Equal(t, 1, preview.RuleCount)
	assert.Equal(t, 2, preview.SubtreeRules)
	assert.True(t, preview.Blocked)
}

func TestRestoreCategory(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	root := f.create(t, "Root", nil)
	target := f.create(t, "Target", root)
	child := f.create(t, "Child", target)

	_, err := f.svc.DeleteCategory(ctx, target.ID, models.DeletePolicyCascade, testActor)
	require.NoError(t, err)

	// A child cannot come back before its parent
	_, err = f.svc.RestoreCategory(ctx, child.ID, testActor)
	require.ErrorIs(t, err, domain.ErrParentNotFound)

	restored, err := f.svc.RestoreCategory(ctx, target.ID, testActor)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)
	assert.Equal(t, target.Path, restored.Path)

	// Descendants stay deleted
	assert.True(t, f.get(t, child.ID).IsDeleted)

	_, err = f.svc.RestoreCategory(ctx, target.ID, testActor)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.assertIntegrity(t)
}

func TestRestoreCategory_SlugTaken(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	original := f.create(t, "Food", nil)
	_, err := f.svc.DeleteCategory(ctx, original.ID, models.DeletePolicyBlock, testActor)
	require.NoError(t, err)

	f.create(t, "Food", nil)

	_, err = f.svc.RestoreCategory(ctx, original.ID, testActor)
	assert.ErrorIs(t, err, domain.ErrDuplicateSlug)
}

func TestReorderCategories(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	root := f.create(t, "Root", nil)
	a := f.create(t, "A", root)
	b := f.create(t, "B", root)
	c := f.create(t, "C", root)

	err := f.svc.ReorderCategories(ctx, &taxSvc.ReorderRequest{
		ParentID: &root.ID,
		IDs:      []string{c.ID, a.ID, b.ID},
		ActorID:  testActor,
	})
	require.NoError(t, err)

	children, err := f.svc.ListChildren(ctx, root.ID, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, []string{children[0].ID, children[1].ID, children[2].ID})
	assert.Equal(t, []int{0, 1, 2}, []int{children[0].SortOrder, children[1].SortOrder, children[2].SortOrder})

	err = f.svc.ReorderCategories(ctx, &taxSvc.ReorderRequest{IDs: []string{}, ActorID: testActor})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = f.svc.ReorderCategories(ctx, &taxSvc.ReorderRequest{IDs: []string{a.ID, a.ID}, ActorID: testActor})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	f.create(t, "Prayer Requests", nil)
	f.create(t, "Morning Prayers", nil)
	f.create(t, "Praise", nil)

	results, err := f.svc.Search(ctx, &models.SearchOptions{Query: "pray"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Prayer Requests", results[0].Category.Name)
	assert.Equal(t, models.RankNamePrefix, results[0].Rank)
	assert.Equal(t, "Morning Prayers", results[1].Category.Name)
	assert.Equal(t, models.RankNameSubstring, results[1].Rank)

	_, err = f.svc.Search(ctx, &models.SearchOptions{Query: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetTree(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	b := f.create(t, "B", nil)
	a := f.create(t, "A", nil)
	b1 := f.create(t, "B1", b)
	a1 := f.create(t, "A1", a)
	a2 := f.create(t, "A2", a)
	hidden := f.create(t, "Hidden", a)
	f.create(t, "Under Hidden", hidden)

	_, err := f.svc.UpdateCategory(ctx, hidden.ID, &taxSvc.UpdateCategoryRequest{IsActive: ptr(false), ActorID: testActor})
	require.NoError(t, err)

	// Roots were created B then A, so sort order puts B first
	flat, err := f.svc.GetTree(ctx, models.ListOptions{})
	require.NoError(t, err)

	var ids []string
	for _, c := range flat {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{b.ID, b1.ID, a.ID, a1.ID, a2.ID}, ids)

	nested, err := f.svc.GetNestedTree(ctx, models.ListOptions{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, nested, 2)
	assert.Len(t, nested[1].Children, 3)
	assert.Len(t, nested[1].Children[2].Children, 1)
}

func TestAncestorsAndDescendants(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	root := f.create(t, "Root", nil)
	mid := f.create(t, "Mid", root)
	leaf := f.create(t, "Leaf", mid)

	ancestors, err := f.svc.GetAncestors(ctx, leaf.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, root.ID, ancestors[0].ID)
	assert.Equal(t, mid.ID, ancestors[1].ID)

	sibling := f.create(t, "Sibling", root)

	descendants, err := f.svc.GetDescendants(ctx, root.ID, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, descendants, 3)
	assert.ElementsMatch(t, []string{mid.ID, sibling.ID}, []string{descendants[0].ID, descendants[1].ID})
	assert.Equal(t, leaf.ID, descendants[2].ID, "deeper rows come last")

	_, err = f.svc.UpdateCategory(ctx, mid.ID, &taxSvc.UpdateCategoryRequest{IsActive: ptr(false), ActorID: testActor})
	require.NoError(t, err)

	descendants, err = f.svc.GetDescendants(ctx, root.ID, models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, descendants, 1, "an inactive descendant hides its subtree")
	assert.Equal(t, sibling.ID, descendants[0].ID)

	descendants, err = f.svc.GetDescendants(ctx, root.ID, models.ListOptions{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, descendants, 3)

	_, err = f.svc.GetAncestors(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetCategoryBySlug(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	root := f.create(t, "Root", nil)
	child := f.create(t, "Child", root)

	got, err := f.svc.GetCategoryBySlug(ctx, "child", &root.ID)
	require.NoError(t, err)
	assert.Equal(t, child.ID, got.ID)

	_, err = f.svc.GetCategoryBySlug(ctx, "child", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
