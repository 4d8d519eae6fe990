package annotation

import (
	"fmt"
	"slices"
	"sync"

	"github.com/starford/satd/internal/apperr"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/tree"
)

// Snapshot is one immutable version of the tree. Callers must not modify the
// nodes it references.
type Snapshot struct {
	Generation uint64
	Version    uint64
	Roots      []*models.Node
	Focus      string
	Expanded   []string
}

// Store owns the current tree version, the focused path and the set of
// expanded directories.
//
// Every ingestion reserves a generation with Begin and publishes its tree
// with Install. Results computed against an older generation are rejected
// with apperr.ErrStaleGeneration, so late work from a superseded ingestion
// never reaches the new tree.
type Store struct {
	mu       sync.RWMutex
	reserved uint64
	gen      uint64
	version  uint64
	roots    []*models.Node
	focus    string
	expanded map[string]struct{}
}

// NewStore creates an empty store at generation zero.
func NewStore() *Store {
	return &Store{
		roots:    []*models.Node{},
		expanded: make(map[string]struct{}),
	}
}

// Begin reserves the next generation. Any generation reserved earlier
// becomes stale immediately.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved++
	return s.reserved
}

// Install publishes roots as generation gen, replacing the previous tree
// wholesale. Focus is cleared and every root directory starts expanded.
func (s *Store) Install(gen uint64, roots []*models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.reserved {
		return fmt.Errorf("annotation: install generation %d (latest %d): %w", gen, s.reserved, apperr.ErrStaleGeneration)
	}
	if roots == nil {
		roots = []*models.Node{}
	}
	s.gen = gen
	s.version++
	s.roots = roots
	s.focus = ""
	s.expanded = make(map[string]struct{})
	for _, r := range roots {
		if r.IsDir() {
			s.expanded[r.Path] = struct{}{}
		}
	}
	return nil
}

// Reset discards the current tree and any in-flight generation.
func (s *Store) Reset() {
	gen := s.Begin()
	// Fails only when a newer Begin already superseded this reset.
	_ = s.Install(gen, nil)
}

// Reserved returns the generation reserved by the latest Begin.
func (s *Store) Reserved() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reserved
}

// Generation returns the generation of the installed tree.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Snapshot returns the current version.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp := make([]string, 0, len(s.expanded))
	for p := range s.expanded {
		exp = append(exp, p)
	}
	slices.Sort(exp)
	return Snapshot{
		Generation: s.gen,
		Version:    s.version,
		Roots:      s.roots,
		Focus:      s.focus,
		Expanded:   exp,
	}
}

// Roots returns the current root nodes.
func (s *Store) Roots() []*models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots
}

// Node returns the node at path in the current version.
func (s *Store) Node(path string) (*models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := tree.Find(s.roots, path)
	return n, n != nil
}

// Update applies p to the node at path in the current version. It reports
// false, and changes nothing, when no such node exists.
func (s *Store) Update(path string, p Patch) (*models.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(path, p)
}

// UpdateAt is Update guarded by a generation check. Only the fields in p are
// merged into the current version, so edits made to other fields since gen
// was captured survive.
func (s *Store) UpdateAt(gen uint64, path string, p Patch) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || gen != s.reserved {
		return nil, fmt.Errorf("annotation: update %s at generation %d (current %d): %w", path, gen, s.gen, apperr.ErrStaleGeneration)
	}
	n, ok := s.updateLocked(path, p)
	if !ok {
		return nil, fmt.Errorf("annotation: node %s: %w", path, apperr.ErrNotFound)
	}
	return n, nil
}

func (s *Store) updateLocked(path string, p Patch) (*models.Node, bool) {
	roots, ok := UpdateNode(s.roots, path, p)
	if !ok {
		return nil, false
	}
	s.roots = roots
	s.version++
	return tree.Find(roots, path), true
}

// ToggleExpanded flips the expanded state of a directory path and returns the
// new state. The set is presentation state only and never exported.
func (s *Store) ToggleExpanded(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expanded[path]; ok {
		delete(s.expanded, path)
		return false
	}
	s.expanded[path] = struct{}{}
	return true
}

// IsExpanded reports whether path is in the expanded set.
func (s *Store) IsExpanded(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.expanded[path]
	return ok
}

// SetFocus focuses the node at path. An empty path clears the focus.
func (s *Store) SetFocus(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path != "" && tree.Find(s.roots, path) == nil {
		return fmt.Errorf("annotation: focus %s: %w", path, apperr.ErrNotFound)
	}
	s.focus = path
	return nil
}

// Focused returns the focused node of the current version, if any.
func (s *Store) Focused() (*models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.focus == "" {
		return nil, false
	}
	n := tree.Find(s.roots, s.focus)
	return n, n != nil
}
