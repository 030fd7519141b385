package taxonomy

import (
	"sort"

	models "canopy/internal/domain/models/taxonomy"
)

// buildTree nests a flat category list. Nodes whose parent is not in the list
// (hidden because inactive) are left out together with their subtree.
func buildTree(flat []models.Category) []*models.CategoryNode {
	nodes := make(map[string]*models.CategoryNode, len(flat))
	for i := range flat {
		nodes[flat[i].ID] = &models.CategoryNode{Category: flat[i], Children: []*models.CategoryNode{}}
	}

	roots := []*models.CategoryNode{}
	for i := range flat {
		node := nodes[flat[i].ID]
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*node.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	sortNodes(roots)
	return roots
}

// sortNodes orders siblings for display, recursively
func sortNodes(nodes []*models.CategoryNode) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// visibleDescendants drops inactive descendants of rootID and everything below them.
// descendants must be ordered by depth so parents are seen before their children.
func visibleDescendants(rootID string, descendants []models.Category) []models.Category {
	visible := map[string]bool{rootID: true}
	out := make([]models.Category, 0, len(descendants))
	for _, d := range descendants {
		if !d.IsActive || d.ParentID == nil || !visible[*d.ParentID] {
			continue
		}
		visible[d.ID] = true
		out = append(out, d)
	}
	return out
}

// flattenTree walks a category tree depth-first, so parents precede their children
func flattenTree(nodes []*models.CategoryNode, result *[]models.Category) {
	for _, n := range nodes {
		*result = append(*result, n.Category)
		flattenTree(n.Children, result)
	}
}
