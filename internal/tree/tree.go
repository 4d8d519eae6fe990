// Package tree reconstructs a nested, deterministically ordered project tree
// from a flat set of slash-separated file paths.
package tree

import (
	"slices"
	"strings"

	"github.com/starford/satd/internal/models"
)

// Record describes one ingested file.
type Record struct {
	Path           string
	Size           int64
	MimeHint       string
	TextPreview    *string
	EncodedPayload *string
	QRPayload      string
}

// SplitPath splits p on "/" and drops empty segments.
func SplitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CleanPath normalises p the way Build keys nodes.
func CleanPath(p string) string {
	return strings.Join(SplitPath(p), "/")
}

// Build converts records into sorted root nodes. Directories are synthesized
// for every path prefix. When two records share a path the later one wins;
// a file whose path is also a directory prefix of another record is dropped.
// An empty input yields an empty, non-nil slice.
func Build(records []Record) []*models.Node {
	nodes := make(map[string]*models.Node)
	order := make([]string, 0, len(records))

	add := func(n *models.Node) {
		if _, ok := nodes[n.Path]; !ok {
			order = append(order, n.Path)
		}
		nodes[n.Path] = n
	}

	// Directories first, so file/directory collisions resolve the same way
	// regardless of input order.
	files := make([]fileRec, 0, len(records))
	for _, r := range records {
		segs := SplitPath(r.Path)
		if len(segs) == 0 {
			continue
		}
		for i := 1; i < len(segs); i++ {
			p := strings.Join(segs[:i], "/")
			if _, ok := nodes[p]; ok {
				continue
			}
			add(newDir(p, segs[i-1]))
		}
		files = append(files, fileRec{segs: segs, rec: r})
	}
	for _, f := range files {
		p := strings.Join(f.segs, "/")
		if existing, ok := nodes[p]; ok && existing.IsDir() {
			continue
		}
		add(newFile(p, f.segs[len(f.segs)-1], f.rec))
	}

	roots := make([]*models.Node, 0)
	for _, p := range order {
		n := nodes[p]
		parent, ok := nodes[parentPath(p)]
		if !ok || !parent.IsDir() {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	SortNodes(roots)
	return roots
}

type fileRec struct {
	segs []string
	rec  Record
}

func newDir(p, name string) *models.Node {
	return &models.Node{
		ID:             p,
		Path:           p,
		Name:           name,
		Kind:           models.KindDirectory,
		Children:       []*models.Node{},
		Classification: models.DefaultClassification(models.KindDirectory),
		Tags:           []string{},
	}
}

func newFile(p, name string, r Record) *models.Node {
	return &models.Node{
		ID:             p,
		Path:           p,
		Name:           name,
		Kind:           models.KindFile,
		MimeHint:       r.MimeHint,
		SizeBytes:      r.Size,
		TextPreview:    r.TextPreview,
		EncodedPayload: r.EncodedPayload,
		QRPayload:      r.QRPayload,
		Classification: models.DefaultClassification(models.KindFile),
		Tags:           []string{},
	}
}

func parentPath(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// SortNodes orders nodes directories-first, then by byte-wise name, and
// recurses into every directory.
func SortNodes(nodes []*models.Node) {
	slices.SortStableFunc(nodes, compareNodes)
	for _, n := range nodes {
		if n.IsDir() {
			SortNodes(n.Children)
		}
	}
}

func compareNodes(a, b *models.Node) int {
	if a.IsDir() != b.IsDir() {
		if a.IsDir() {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

// Walk visits nodes in pre-order. Returning false from fn stops the walk.
func Walk(roots []*models.Node, fn func(n *models.Node) bool) bool {
	for _, n := range roots {
		if !fn(n) {
			return false
		}
		if len(n.Children) > 0 && !Walk(n.Children, fn) {
			return false
		}
	}
	return true
}

// Flatten returns every node in pre-order.
func Flatten(roots []*models.Node) []*models.Node {
	var out []*models.Node
	Walk(roots, func(n *models.Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Find returns the node at path p, or nil.
func Find(roots []*models.Node, p string) *models.Node {
	var found *models.Node
	Walk(roots, func(n *models.Node) bool {
		if n.Path == p {
			found = n
			return false
		}
		return true
	})
	return found
}

// Count returns the number of file and directory nodes.
func Count(roots []*models.Node) (files, dirs int) {
	Walk(roots, func(n *models.Node) bool {
		if n.IsDir() {
			dirs++
		} else {
			files++
		}
		return true
	})
	return files, dirs
}
