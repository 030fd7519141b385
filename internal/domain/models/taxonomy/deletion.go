package taxonomy

import "fmt"

// DeletePolicy selects what happens to a deleted category's children and rules
type DeletePolicy string

const (
	// DeletePolicyBlock refuses deletion while children or rules exist
	DeletePolicyBlock DeletePolicy = "block"

	// DeletePolicyReassign moves children and rules up to the deleted category's parent
	DeletePolicyReassign DeletePolicy = "reassign"

	// DeletePolicyCascade deletes the whole subtree and detaches every rule pointing into it
	DeletePolicyCascade DeletePolicy = "cascade"
)

// DefaultDeletePolicy is the safest policy that never refuses
const DefaultDeletePolicy = DeletePolicyReassign

// ParseDeletePolicy converts a raw policy name, defaulting empty input to DefaultDeletePolicy
func ParseDeletePolicy(raw string) (DeletePolicy, error) {
	switch p := DeletePolicy(raw); p {
	case "":
		return DefaultDeletePolicy, nil
	case DeletePolicyBlock, DeletePolicyReassign, DeletePolicyCascade:
		return p, nil
	default:
		return "", fmt.Errorf("unknown delete policy %q (expected block, reassign or cascade)", raw)
	}
}

// DeleteResult reports the outcome of a safe delete.
// A blocked delete is a normal result with Success=false, not an error.
type DeleteResult struct {
	Success           bool         `json:"success"`
	Message           string       `json:"message"`
	Policy            DeletePolicy `json:"policy"`
	AffectedRules     int          `json:"affected_rules"`
	AffectedChildren  int          `json:"affected_children"`
	DeletedCategories int          `json:"deleted_categories"`
}

// DeletePreview describes what a delete would touch without changing anything
type DeletePreview struct {
	CategoryID      string `json:"category_id"`
	ChildCount      int    `json:"child_count"`
	DescendantCount int    `json:"descendant_count"`
	RuleCount       int    `json:"rule_count"`
	SubtreeRules    int    `json:"subtree_rule_count"`
	Blocked         bool   `json:"blocked"` // true when the block policy would refuse
}
