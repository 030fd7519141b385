package taxonomy

import "time"

// Rule is the externally-owned record that categories organize.
// This service only ever writes CategoryID, and only while deleting categories.
type Rule struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	CategoryID *string   `json:"category_id" db:"category_id"` // weak reference, NULL = uncategorized
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
