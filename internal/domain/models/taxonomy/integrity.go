package taxonomy

// ViolationKind names the invariant a row breaks
type ViolationKind string

const (
	ViolationDepthRange    ViolationKind = "depth_out_of_range"
	ViolationDepthMismatch ViolationKind = "depth_mismatch"
	ViolationPathMismatch  ViolationKind = "path_mismatch"
	ViolationOrphan        ViolationKind = "orphaned_category"
	ViolationCycle         ViolationKind = "cycle"
	ViolationDuplicateSlug ViolationKind = "duplicate_slug"
	ViolationDanglingRule  ViolationKind = "dangling_rule"
)

// Violation is one broken invariant found by an integrity audit
type Violation struct {
	Kind       ViolationKind `json:"kind"`
	CategoryID string        `json:"category_id,omitempty"`
	RuleID     string        `json:"rule_id,omitempty"`
	Detail     string        `json:"detail"`
}

// IntegrityReport is the result of auditing the whole category table and its rule references
type IntegrityReport struct {
	CategoriesChecked int         `json:"categories_checked"`
	RulesChecked      int         `json:"rules_checked"`
	Violations        []Violation `json:"violations"`
}

// OK reports whether no violations were found
func (r *IntegrityReport) OK() bool {
	return len(r.Violations) == 0
}
