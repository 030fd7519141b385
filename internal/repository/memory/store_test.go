package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"canopy/internal/domain"
	models "canopy/internal/domain/models/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCategory(id string, parent *models.Category, slug string) *models.Category {
	now := time.Now().UTC()
	c := &models.Category{
		ID:        id,
		Slug:      slug,
		Name:      slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if parent == nil {
		c.Path = models.RootPath(id)
		return c
	}
	c.ParentID = &parent.ID
	c.Depth = parent.Depth + 1
	c.Path = models.ChildPath(parent.Path, id)
	return c
}

func TestExecTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewCategoryRepository(store)
	tm := NewTransactionManager(store)

	root := newCategory("root", nil, "root")
	require.NoError(t, repo.Create(ctx, root))

	boom := errors.New("boom")
	err := tm.ExecTx(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, newCategory("child", root, "child")); err != nil {
			return err
		}
		if _, err := repo.SoftDelete(txCtx, []string{"root"}, "actor", time.Now()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.FindByID(ctx, "root", false)
	require.NoError(t, err)
	require.NotNil(t, got, "soft delete should be rolled back")

	child, err := repo.FindByID(ctx, "child", true)
	require.NoError(t, err)
	assert.Nil(t, child, "insert should be rolled back")
}

func TestExecTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewCategoryRepository(store)
	tm := NewTransactionManager(store)

	require.NoError(t, repo.Create(ctx, newCategory("a", nil, "a")))
	require.NoError(t, repo.Create(ctx, newCategory("b", nil, "b")))

	require.PanicsWithValue(t, "crash mid-cascade", func() {
		_ = tm.ExecTx(ctx, func(txCtx context.Context) error {
			if _, err := repo.SoftDelete(txCtx, []string{"a"}, "actor", time.Now()); err != nil {
				return err
			}
			panic("crash mid-cascade")
		})
	})

	for _, id := range []string{"a", "b"} {
		got, err := repo.FindByID(ctx, id, true)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.IsDeleted, "%s must survive the aborted transaction", id)
	}

	// The lock was released, so later transactions still run
	require.NoError(t, tm.ExecTx(ctx, func(txCtx context.Context) error {
		return repo.Create(txCtx, newCategory("c", nil, "c"))
	}))
}

func TestExecTx_CommitsAndNests(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewCategoryRepository(store)
	tm := NewTransactionManager(store)

	err := tm.ExecTx(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, newCategory("a", nil, "a")); err != nil {
			return err
		}
		return tm.ExecTx(txCtx, func(inner context.Context) error {
			return repo.Create(inner, newCategory("b", nil, "b"))
		})
	})
	require.NoError(t, err)

	roots, err := repo.FindRoots(ctx, models.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, roots, 2)
}

func TestCategoryRepository_Constraints(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewCategoryRepository(store)

	root := newCategory("root", nil, "root")
	require.NoError(t, repo.Create(ctx, root))
	child := newCategory("child", root, "child")
	require.NoError(t, repo.Create(ctx, child))

	tooDeep := newCategory("deep", child, "deep")
	tooDeep.Depth = 5

	rootWithDepth := newCategory("odd", nil, "odd")
	rootWithDepth.Depth = 1

	selfParent := newCategory("self", root, "self")
	selfParent.ParentID = &selfParent.ID

	orphan := newCategory("orphan", root, "orphan")
	missing := "missing"
	orphan.ParentID = &missing

	tests := []struct {
		name    string
		row     *models.Category
		wantErr error
	}{
		{"depth above ceiling", tooDeep, domain.ErrMaxDepthExceeded},
		{"root with depth", rootWithDepth, domain.ErrValidation},
		{"self parent", selfParent, domain.ErrCyclicMove},
		{"missing parent", orphan, domain.ErrParentNotFound},
		{"sibling slug", newCategory("dup", root, "child"), domain.ErrDuplicateSlug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, repo.Create(ctx, tt.row), tt.wantErr)
		})
	}

	t.Run("same slug in another scope", func(t *testing.T) {
		assert.NoError(t, repo.Create(ctx, newCategory("other", nil, "child")))
	})

	t.Run("deleted sibling frees its slug", func(t *testing.T) {
		n, err := repo.SoftDelete(ctx, []string{"child"}, "actor", time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.NoError(t, repo.Create(ctx, newCategory("again", root, "child")))
	})
}

func TestCategoryRepository_RewriteSubtree(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewCategoryRepository(store)

	a := newCategory("a", nil, "a")
	b := newCategory("b", a, "b")
	c := newCategory("c", b, "c")
	for _, row := range []*models.Category{a, b, c} {
		require.NoError(t, repo.Create(ctx, row))
	}

	n, err := repo.RewriteSubtree(ctx, "/a/", "/x/a/", 1, "actor", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.FindByID(ctx, "c", false)
	require.NoError(t, err)
	assert.Equal(t, "/x/a/b/c", got.Path)
	assert.Equal(t, 3, got.Depth)

	_, err = repo.RewriteSubtree(ctx, "/x/a/", "/a/", 2, "actor", time.Now())
	assert.ErrorIs(t, err, domain.ErrMaxDepthExceeded)

	unchanged, err := repo.FindByID(ctx, "b", false)
	require.NoError(t, err)
	assert.Equal(t, "/x/a/b", unchanged.Path, "a failed rewrite must not touch any row")
}

func TestRuleRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	categories := NewCategoryRepository(store)
	rules := NewRuleRepository(store)

	a := newCategory("a", nil, "a")
	b := newCategory("b", a, "b")
	require.NoError(t, categories.Create(ctx, a))
	require.NoError(t, categories.Create(ctx, b))

	for _, target := range []string{"a", "b", "b"} {
		id := target
		_, err := store.PutRule(ctx, &models.Rule{Name: "r", CategoryID: &id})
		require.NoError(t, err)
	}
	_, err := store.PutRule(ctx, &models.Rule{Name: "loose"})
	require.NoError(t, err)

	missing := "missing"
	_, err = store.PutRule(ctx, &models.Rule{Name: "bad", CategoryID: &missing})
	assert.Error(t, err)

	gone := newCategory("gone", nil, "gone")
	require.NoError(t, categories.Create(ctx, gone))
	_, err = categories.SoftDelete(ctx, []string{"gone"}, "actor", time.Now())
	require.NoError(t, err)
	_, err = store.PutRule(ctx, &models.Rule{Name: "dangling", CategoryID: &gone.ID})
	assert.ErrorContains(t, err, "deleted category")

	count, err := rules.CountByCategories(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	moved, err := rules.ReassignCategory(ctx, "b", &a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	count, err = rules.CountByCategory(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	detached, err := rules.DetachCategories(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 3, detached)

	categorized, err := rules.ListCategorized(ctx)
	require.NoError(t, err)
	assert.Empty(t, categorized)
}
