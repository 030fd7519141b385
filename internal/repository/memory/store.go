// Package memory is an in-process implementation of the category and rule
// repositories. It enforces the same constraints as the Postgres schema
// (live sibling slug uniqueness, parent foreign key, depth range) and gives
// ExecTx all-or-nothing semantics by snapshotting the tables.
package memory

import (
	"context"
	"sync"

	models "canopy/internal/domain/models/taxonomy"
	"canopy/internal/domain/repositories"
)

// maxStoredDepth mirrors the depth CHECK constraint of the categories table
const maxStoredDepth = 4

// Store holds the category and rule tables.
// A single mutex serializes transactions, which gives them serializable isolation.
type Store struct {
	mu         sync.Mutex
	categories map[string]*models.Category
	rules      map[string]*models.Rule
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		categories: make(map[string]*models.Category),
		rules:      make(map[string]*models.Rule),
	}
}

// txKey marks a context that already holds the lock of the stored *Store
type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	held, _ := ctx.Value(txKey{}).(*Store)
	return held == s
}

// lock acquires the store mutex unless ctx belongs to a transaction on this store
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	categories map[string]models.Category
	rules      map[string]models.Rule
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		categories: make(map[string]models.Category, len(s.categories)),
		rules:      make(map[string]models.Rule, len(s.rules)),
	}
	for id, c := range s.categories {
		snap.categories[id] = cloneCategory(c)
	}
	for id, r := range s.rules {
		snap.rules[id] = cloneRule(r)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.categories = make(map[string]*models.Category, len(snap.categories))
	for id, c := range snap.categories {
		c := c
		s.categories[id] = &c
	}
	s.rules = make(map[string]*models.Rule, len(snap.rules))
	for id, r := range snap.rules {
		r := r
		s.rules[id] = &r
	}
}

// TransactionManager implements repositories.TransactionManager over a Store
type TransactionManager struct {
	store *Store
}

// NewTransactionManager creates a transaction manager for the store
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// ExecTx runs fn while holding the store lock.
// Unless fn returns nil every change it made is rolled back, including when fn panics;
// the panic then continues up the stack.
// Nested calls join the outer transaction.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if tm.store.inTx(ctx) {
		return fn(ctx)
	}

	tm.store.mu.Lock()
	defer tm.store.mu.Unlock()

	snap := tm.store.snapshot()
	committed := false
	defer func() {
		if !committed {
			tm.store.restore(snap)
		}
	}()

	txCtx := context.WithValue(ctx, txKey{}, tm.store)
	if err := fn(txCtx); err != nil {
		return err
	}

	committed = true
	return nil
}

func cloneCategory(c *models.Category) models.Category {
	out := *c
	if c.ParentID != nil {
		v := *c.ParentID
		out.ParentID = &v
	}
	if c.DeletedAt != nil {
		v := *c.DeletedAt
		out.DeletedAt = &v
	}
	if c.DeletedBy != nil {
		v := *c.DeletedBy
		out.DeletedBy = &v
	}
	return out
}

func cloneRule(r *models.Rule) models.Rule {
	out := *r
	if r.CategoryID != nil {
		v := *r.CategoryID
		out.CategoryID = &v
	}
	return out
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
