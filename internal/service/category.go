package service

import (
	"bitwise74/storefront-api/internal/model"
	"cmp"
	"slices"
)

type CategoryNode struct {
	model.Category
	Children []*CategoryNode `json:"children"`
}

// BuildTree turns a flat list into a forest. Siblings are ordered by
// position then name. A category whose parent is missing becomes a root and
// a parent cycle is cut at its first member in sibling order, so every
// category shows up exactly once.
func BuildTree(flat []model.Category) []*CategoryNode {
	sorted := sortCategories(flat)
	parents := effectiveParents(sorted)

	nodes := make(map[string]*CategoryNode, len(sorted))
	for _, c := range sorted {
		nodes[c.ID] = &CategoryNode{Category: c, Children: []*CategoryNode{}}
	}

	roots := []*CategoryNode{}
	for _, c := range sorted {
		n := nodes[c.ID]

		if p, ok := parents[c.ID]; ok {
			nodes[p].Children = append(nodes[p].Children, n)
		} else {
			roots = append(roots, n)
		}
	}

	return roots
}

func sortCategories(flat []model.Category) []model.Category {
	sorted := slices.Clone(flat)
	slices.SortStableFunc(sorted, func(a, b model.Category) int {
		return cmp.Or(
			cmp.Compare(a.Position, b.Position),
			cmp.Compare(a.Name, b.Name),
		)
	})

	return sorted
}

// effectiveParents maps id to parent id for every category that ends up
// attached below another one
func effectiveParents(sorted []model.Category) map[string]string {
	known := make(map[string]bool, len(sorted))
	for _, c := range sorted {
		known[c.ID] = true
	}

	parents := make(map[string]string, len(sorted))
	for _, c := range sorted {
		if c.ParentID == nil || *c.ParentID == c.ID || !known[*c.ParentID] {
			continue
		}

		parents[c.ID] = *c.ParentID
	}

	for _, c := range sorted {
		seen := map[string]bool{}

		id, ok := parents[c.ID]
		for ok {
			if id == c.ID {
				delete(parents, c.ID)
				break
			}

			if seen[id] {
				break
			}
			seen[id] = true

			id, ok = parents[id]
		}
	}

	return parents
}

// FindNode returns the node with the given slug
func FindNode(roots []*CategoryNode, slug string) *CategoryNode {
	for _, n := range roots {
		if n.Slug == slug {
			return n
		}

		if found := FindNode(n.Children, slug); found != nil {
			return found
		}
	}

	return nil
}

// Breadcrumb lists the path from the root down to and including id
func Breadcrumb(flat []model.Category, id string) []model.Category {
	sorted := sortCategories(flat)
	parents := effectiveParents(sorted)

	byID := make(map[string]model.Category, len(sorted))
	for _, c := range sorted {
		byID[c.ID] = c
	}

	c, ok := byID[id]
	if !ok {
		return nil
	}

	path := []model.Category{c}
	for {
		p, ok := parents[c.ID]
		if !ok {
			break
		}

		c = byID[p]
		path = append(path, c)
	}

	slices.Reverse(path)
	return path
}

// IsSelfOrDescendant reports whether candidate is root or sits anywhere
// below it. Used to refuse moves that would create a cycle.
func IsSelfOrDescendant(flat []model.Category, root, candidate string) bool {
	parents := make(map[string]string, len(flat))
	for _, c := range flat {
		if c.ParentID != nil {
			parents[c.ID] = *c.ParentID
		}
	}

	seen := map[string]bool{}
	for id, ok := candidate, true; ok; id, ok = parents[id] {
		if id == root {
			return true
		}

		if seen[id] {
			return false
		}
		seen[id] = true
	}

	return false
}
