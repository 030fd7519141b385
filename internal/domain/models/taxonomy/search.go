package taxonomy

import (
	"fmt"
	"sort"
	"strings"
)

// Search ranks, lower is better
const (
	RankNamePrefix    = 0 // name starts with the query
	RankNameSubstring = 1 // name contains the query
	RankOtherField    = 2 // only slug or description contain the query
)

// Default search configuration values
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// SearchOptions configures a category text search
type SearchOptions struct {
	// Query is the search term (required), matched case-insensitively as a substring
	Query string

	// Limit caps the number of results (default: 20, max: 100)
	Limit int

	// IncludeInactive also returns categories with IsActive=false
	IncludeInactive bool
}

// ApplyDefaults fills in default values for unset fields
func (opts *SearchOptions) ApplyDefaults() {
	opts.Query = strings.TrimSpace(opts.Query)
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
}

// Validate checks that required fields are set and values are reasonable
func (opts *SearchOptions) Validate() error {
	if opts.Query == "" {
		return fmt.Errorf("search query cannot be empty")
	}
	if opts.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if opts.Limit > MaxSearchLimit {
		return fmt.Errorf("limit cannot exceed %d (requested: %d)", MaxSearchLimit, opts.Limit)
	}
	return nil
}

// SearchResult is a matched category and its rank
type SearchResult struct {
	Category Category `json:"category"`
	Rank     int      `json:"rank"`
}

// MatchRank ranks a category against a query.
// ok is false when none of name, slug or description contain the query.
func MatchRank(c *Category, query string) (rank int, ok bool) {
	q := strings.ToLower(query)
	name := strings.ToLower(c.Name)
	switch {
	case strings.HasPrefix(name, q):
		return RankNamePrefix, true
	case strings.Contains(name, q):
		return RankNameSubstring, true
	case strings.Contains(strings.ToLower(c.Slug), q),
		strings.Contains(strings.ToLower(c.Description), q):
		return RankOtherField, true
	}
	return 0, false
}

// SortSearchResults orders results by rank, then depth, sort order and name
func SortSearchResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		if a.Category.Depth != b.Category.Depth {
			return a.Category.Depth < b.Category.Depth
		}
		if a.Category.SortOrder != b.Category.SortOrder {
			return a.Category.SortOrder < b.Category.SortOrder
		}
		return a.Category.Name < b.Category.Name
	})
}
