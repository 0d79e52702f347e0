package service

import (
	"bitwise74/storefront-api/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func cat(id, name string, parent *string, pos int) model.Category {
	return model.Category{ID: id, Name: name, Slug: id, ParentID: parent, Position: pos}
}

func names(nodes []*CategoryNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestBuildTreeOrdersSiblings(t *testing.T) {
	flat := []model.Category{
		cat("shoes", "Shoes", nil, 1),
		cat("bags", "Bags", nil, 1),
		cat("sale", "Sale", nil, 0),
		cat("boots", "Boots", ptr("shoes"), 2),
		cat("heels", "Heels", ptr("shoes"), 1),
		cat("ankle", "Ankle", ptr("boots"), 0),
	}

	roots := BuildTree(flat)
	assert.Equal(t, []string{"Sale", "Bags", "Shoes"}, names(roots))

	shoes := roots[2]
	assert.Equal(t, []string{"Heels", "Boots"}, names(shoes.Children))
	assert.Equal(t, []string{"Ankle"}, names(shoes.Children[1].Children))
	assert.NotNil(t, roots[0].Children)
}

func TestBuildTreeOrphansAndCycles(t *testing.T) {
	flat := []model.Category{
		cat("a", "A", ptr("b"), 0),
		cat("b", "B", ptr("a"), 0),
		cat("orphan", "Orphan", ptr("gone"), 0),
		cat("self", "Self", ptr("self"), 0),
	}

	roots := BuildTree(flat)
	assert.ElementsMatch(t, []string{"A", "Orphan", "Self"}, names(roots))

	var a *CategoryNode
	for _, r := range roots {
		if r.ID == "a" {
			a = r
		}
	}
	require.NotNil(t, a)
	assert.Equal(t, []string{"B"}, names(a.Children))

	count := 0
	var walk func([]*CategoryNode)
	walk = func(ns []*CategoryNode) {
		for _, n := range ns {
			count++
			walk(n.Children)
		}
	}
	walk(roots)
	assert.Equal(t, len(flat), count)
}

func TestFindNodeAndBreadcrumb(t *testing.T) {
	flat := []model.Category{
		cat("men", "Men", nil, 0),
		cat("shirts", "Shirts", ptr("men"), 0),
		cat("polo", "Polo", ptr("shirts"), 0),
	}

	node := FindNode(BuildTree(flat), "polo")
	require.NotNil(t, node)
	assert.Equal(t, "Polo", node.Name)
	assert.Nil(t, FindNode(BuildTree(flat), "missing"))

	crumbs := Breadcrumb(flat, "polo")
	require.Len(t, crumbs, 3)
	assert.Equal(t, "men", crumbs[0].ID)
	assert.Equal(t, "polo", crumbs[2].ID)

	assert.Nil(t, Breadcrumb(flat, "missing"))
}

func TestIsSelfOrDescendant(t *testing.T) {
	flat := []model.Category{
		cat("root", "Root", nil, 0),
		cat("child", "Child", ptr("root"), 0),
		cat("leaf", "Leaf", ptr("child"), 0),
		cat("other", "Other", nil, 0),
		cat("x", "X", ptr("y"), 0),
		cat("y", "Y", ptr("x"), 0),
	}

	assert.True(t, IsSelfOrDescendant(flat, "root", "root"))
	assert.True(t, IsSelfOrDescendant(flat, "root", "leaf"))
	assert.False(t, IsSelfOrDescendant(flat, "leaf", "root"))
	assert.False(t, IsSelfOrDescendant(flat, "root", "other"))
	assert.False(t, IsSelfOrDescendant(flat, "root", "x"))
}
