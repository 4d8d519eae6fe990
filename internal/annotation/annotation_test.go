package annotation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/satd/internal/apperr"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/tree"
)

func sampleRoots() []*models.Node {
	text := "hello"
	return tree.Build([]tree.Record{
		{Path: "proj/a.txt", Size: 5, TextPreview: &text},
		{Path: "proj/sub/b.png", Size: 12, MimeHint: "image/png"},
		{Path: "proj/sub/c.md", Size: 3},
		{Path: "other/d.go", Size: 1},
	})
}

// fingerprint captures every exported field of a node except Children.
func fingerprint(n *models.Node) string {
	c := *n
	c.Children = nil
	return fmt.Sprintf("%+v|%v|%v", c, deref(c.TextPreview), len(n.Children))
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestUpdateNode_PointUpdateIsolation(t *testing.T) {
	roots := sampleRoots()
	before := map[string]string{}
	byPath := map[string]*models.Node{}
	for _, n := range tree.Flatten(roots) {
		before[n.Path] = fingerprint(n)
		byPath[n.Path] = n
	}

	cls := models.Image
	tags := []string{" qr ", "", "logo"}
	updated, ok := UpdateNode(roots, "proj/sub/b.png", Patch{Classification: &cls, Tags: &tags})
	require.True(t, ok)

	for _, n := range tree.Flatten(updated) {
		if n.Path == "proj/sub/b.png" {
			assert.Equal(t, models.Image, n.Classification)
			assert.Equal(t, []string{"qr", "logo"}, n.Tags)
			assert.Equal(t, "image/png", n.MimeHint)
			continue
		}
		assert.Equal(t, before[n.Path], fingerprint(n), "node %s changed", n.Path)
	}

	// Untouched subtrees are shared, ancestors of the target are copied.
	assert.Same(t, byPath["other"], tree.Find(updated, "other"))
	assert.Same(t, byPath["proj/a.txt"], tree.Find(updated, "proj/a.txt"))
	assert.Same(t, byPath["proj/sub/c.md"], tree.Find(updated, "proj/sub/c.md"))
	assert.NotSame(t, byPath["proj"], tree.Find(updated, "proj"))

	// The original version is untouched.
	orig := tree.Find(roots, "proj/sub/b.png")
	assert.Equal(t, models.Unclassified, orig.Classification)
	assert.Empty(t, orig.Tags)
	assert.Equal(t, before["proj/sub/b.png"], fingerprint(orig))
}

func TestUpdateNode_SiblingOrderKept(t *testing.T) {
	roots := sampleRoots()
	notes := "depends on sub"
	updated, ok := UpdateNode(roots, "proj/a.txt", Patch{RelationshipNotes: &notes})
	require.True(t, ok)

	var want, got []string
	for _, n := range tree.Flatten(roots) {
		want = append(want, n.Path)
	}
	for _, n := range tree.Flatten(updated) {
		got = append(got, n.Path)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, notes, tree.Find(updated, "proj/a.txt").RelationshipNotes)
}

func TestUpdateNode_MissingPathIsNoop(t *testing.T) {
	roots := sampleRoots()
	summary := "x"
	updated, ok := UpdateNode(roots, "proj/nope.txt", Patch{AISummary: &summary})
	assert.False(t, ok)
	require.Len(t, updated, len(roots))
	for i := range roots {
		assert.Same(t, roots[i], updated[i])
	}

	updated, ok = UpdateNode(nil, "anything", Patch{AISummary: &summary})
	assert.False(t, ok)
	assert.Empty(t, updated)
}

func TestStore_GenerationGuards(t *testing.T) {
	s := NewStore()

	first := s.Begin()
	require.NoError(t, s.Install(first, sampleRoots()))

	// An analysis captured at the first generation.
	captured := s.Generation()

	second := s.Begin()
	assert.Equal(t, second, s.Reserved())
	assert.Equal(t, first, s.Generation(), "installed generation lags until Install")
	err := s.Install(first, sampleRoots())
	assert.True(t, errors.Is(err, apperr.ErrStaleGeneration))

	summary := "late result"
	_, err = s.UpdateAt(captured, "proj/a.txt", Patch{AISummary: &summary})
	assert.True(t, errors.Is(err, apperr.ErrStaleGeneration), "reserved newer generation invalidates older work")

	require.NoError(t, s.Install(second, sampleRoots()))
	_, err = s.UpdateAt(captured, "proj/a.txt", Patch{AISummary: &summary})
	assert.True(t, errors.Is(err, apperr.ErrStaleGeneration))
	n, _ := s.Node("proj/a.txt")
	assert.Empty(t, n.AISummary)

	n, err = s.UpdateAt(second, "proj/a.txt", Patch{AISummary: &summary})
	require.NoError(t, err)
	assert.Equal(t, summary, n.AISummary)

	_, err = s.UpdateAt(second, "proj/missing", Patch{AISummary: &summary})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestStore_LateSummaryKeepsOtherEdits(t *testing.T) {
	s := NewStore()
	gen := s.Begin()
	require.NoError(t, s.Install(gen, sampleRoots()))

	captured := s.Generation()
	cls := models.TextDocument
	_, ok := s.Update("proj/a.txt", Patch{Classification: &cls})
	require.True(t, ok)

	summary := "greets the reader"
	n, err := s.UpdateAt(captured, "proj/a.txt", Patch{AISummary: &summary})
	require.NoError(t, err)
	assert.Equal(t, models.TextDocument, n.Classification)
	assert.Equal(t, summary, n.AISummary)
}

func TestStore_ExpandedAndFocus(t *testing.T) {
	s := NewStore()
	gen := s.Begin()
	require.NoError(t, s.Install(gen, sampleRoots()))

	snap := s.Snapshot()
	assert.Equal(t, []string{"other", "proj"}, snap.Expanded)
	assert.Empty(t, snap.Focus)

	assert.True(t, s.ToggleExpanded("proj/sub"))
	assert.True(t, s.IsExpanded("proj/sub"))
	assert.False(t, s.ToggleExpanded("proj"))
	assert.False(t, s.IsExpanded("proj"))

	require.NoError(t, s.SetFocus("proj/sub/c.md"))
	f, ok := s.Focused()
	require.True(t, ok)
	assert.Equal(t, "c.md", f.Name)
	assert.True(t, errors.Is(s.SetFocus("nope"), apperr.ErrNotFound))

	// A new ingestion resets presentation state.
	gen = s.Begin()
	require.NoError(t, s.Install(gen, sampleRoots()))
	_, ok = s.Focused()
	assert.False(t, ok)
	assert.False(t, s.IsExpanded("proj/sub"))
	assert.True(t, s.IsExpanded("proj"))
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	gen := s.Begin()
	require.NoError(t, s.Install(gen, sampleRoots()))

	s.Reset()
	assert.Empty(t, s.Roots())
	assert.Greater(t, s.Generation(), gen)
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "a"}, ParseTags(" a, ,b c,a,"))
	assert.Equal(t, []string{}, ParseTags(""))
}
