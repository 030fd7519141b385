package taxonomy

import (
	"strings"
	"time"
)

// PathSeparator joins ids inside a materialized path
const PathSeparator = "/"

// Category is a node of the rule taxonomy.
// Depth and Path are owned by the tree engine and kept in lockstep with ParentID.
type Category struct {
	ID          string     `json:"id" db:"id"`
	ParentID    *string    `json:"parent_id" db:"parent_id"` // NULL = root
	Slug        string     `json:"slug" db:"slug"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	Icon        string     `json:"icon" db:"icon"`
	Color       string     `json:"color" db:"color"`
	SortOrder   int        `json:"sort_order" db:"sort_order"`
	Depth       int        `json:"depth" db:"depth"`
	Path        string     `json:"path" db:"path"` // "/rootID/childID/..."
	IsActive    bool       `json:"is_active" db:"is_active"`
	IsDeleted   bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedBy   *string    `json:"deleted_by,omitempty" db:"deleted_by"`
	CreatedBy   string     `json:"created_by" db:"created_by"`
	UpdatedBy   string     `json:"updated_by" db:"updated_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the category has no parent
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// AncestorIDs returns the ids encoded in the path, root first, excluding the category itself
func (c *Category) AncestorIDs() []string {
	ids := SplitPath(c.Path)
	if len(ids) == 0 {
		return nil
	}
	return ids[:len(ids)-1]
}

// RootPath returns the materialized path of a root category
func RootPath(id string) string {
	return PathSeparator + id
}

// ChildPath returns the materialized path of a category placed under parentPath
func ChildPath(parentPath, id string) string {
	return parentPath + PathSeparator + id
}

// DescendantPrefix returns the prefix shared by every descendant path of path
func DescendantPrefix(path string) string {
	return path + PathSeparator
}

// SplitPath breaks a materialized path into its ids
func SplitPath(path string) []string {
	trimmed := strings.Trim(path, PathSeparator)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, PathSeparator)
}

// ListOptions filters category listings.
// Deleted rows are excluded everywhere unless IncludeDeleted is set.
type ListOptions struct {
	IncludeInactive bool
	IncludeDeleted  bool
}

// CategoryNode is a category with its children attached, used for nested tree output
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}
