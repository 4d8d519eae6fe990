// Package annotation holds the authoritative project tree and applies user
// and analysis edits to it as new immutable versions.
package annotation

import (
	"slices"
	"strings"

	"github.com/starford/satd/internal/models"
)

// Patch carries the annotation fields to change. Nil fields are left alone.
type Patch struct {
	Classification    *models.Classification `json:"userDefinedType,omitempty"`
	Tags              *[]string              `json:"tags,omitempty"`
	RelationshipNotes *string                `json:"relationships,omitempty"`
	AISummary         *string                `json:"aiSummary,omitempty"`
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.Classification == nil && p.Tags == nil && p.RelationshipNotes == nil && p.AISummary == nil
}

func (p Patch) apply(n *models.Node) {
	if p.Classification != nil {
		n.Classification = *p.Classification
	}
	if p.Tags != nil {
		n.Tags = CleanTags(*p.Tags)
	}
	if p.RelationshipNotes != nil {
		n.RelationshipNotes = *p.RelationshipNotes
	}
	if p.AISummary != nil {
		n.AISummary = *p.AISummary
	}
}

// CleanTags trims every tag and drops the empty ones. Order and duplicates
// are kept. The result is never nil.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ParseTags splits a comma-separated tag string.
func ParseTags(s string) []string {
	return CleanTags(strings.Split(s, ","))
}

// UpdateNode returns a new root slice in which the node at path has p
// applied. Only the nodes on the path from the root to the target are
// copied; every other node is shared with roots. If no node has that path,
// roots is returned unchanged and ok is false.
func UpdateNode(roots []*models.Node, path string, p Patch) (updated []*models.Node, ok bool) {
	return updateIn(roots, path, p)
}

func updateIn(nodes []*models.Node, path string, p Patch) ([]*models.Node, bool) {
	for i, n := range nodes {
		if n.Path == path {
			c := n.Clone()
			c.Tags = slices.Clone(n.Tags)
			p.apply(c)
			out := slices.Clone(nodes)
			out[i] = c
			return out, true
		}
		if n.IsDir() && strings.HasPrefix(path, n.Path+"/") {
			kids, ok := updateIn(n.Children, path, p)
			if !ok {
				return nodes, false
			}
			c := n.Clone()
			c.Children = kids
			out := slices.Clone(nodes)
			out[i] = c
			return out, true
		}
	}
	return nodes, false
}
