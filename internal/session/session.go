// Package session keeps the in-memory annotation sessions and runs every
// user-level action against them: ingestion, annotation, AI analysis and
// export.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/starford/satd/internal/annotation"
	"github.com/starford/satd/internal/manifest"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/tree"
)

// Session is one project being annotated.
type Session struct {
	ID        string
	CreatedAt time.Time

	store *annotation.Store

	// ingestMu orders watcher control against the generation reserved by
	// each ingestion.
	ingestMu sync.Mutex

	mu        sync.RWMutex
	project   manifest.Project
	sourceDir string
	stopWatch context.CancelFunc
}

func newSession(id string, project manifest.Project, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		store:     annotation.NewStore(),
		project:   project,
	}
}

// Project returns the narrative fields.
func (s *Session) Project() manifest.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project
}

// SourceDir is the directory the session was last ingested from, if any.
func (s *Session) SourceDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceDir
}

// Store exposes the annotation store.
func (s *Session) Store() *annotation.Store { return s.store }

// Info is the summary of a session returned by listings.
type Info struct {
	ID         string           `json:"id"`
	Project    manifest.Project `json:"project"`
	SourceDir  string           `json:"sourceDir,omitempty"`
	Generation uint64           `json:"generation"`
	Files      int              `json:"files"`
	Dirs       int              `json:"dirs"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// Detail is a session with its current tree.
type Detail struct {
	Info
	Tree     []*models.Node `json:"tree"`
	Focus    string         `json:"focus,omitempty"`
	Expanded []string       `json:"expanded"`
}

// Info summarises s.
func (s *Session) Info() Info {
	return s.info(s.store.Snapshot())
}

// Detail returns s together with its tree and presentation state.
func (s *Session) Detail() Detail {
	snap := s.store.Snapshot()
	return Detail{
		Info:     s.info(snap),
		Tree:     snap.Roots,
		Focus:    snap.Focus,
		Expanded: snap.Expanded,
	}
}

func (s *Session) info(snap annotation.Snapshot) Info {
	files, dirs := tree.Count(snap.Roots)
	return Info{
		ID:         s.ID,
		Project:    s.Project(),
		SourceDir:  s.SourceDir(),
		Generation: snap.Generation,
		Files:      files,
		Dirs:       dirs,
		CreatedAt:  s.CreatedAt,
	}
}

func (s *Session) setWatch(dir string, stop context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.sourceDir = dir
	s.stopWatch = stop
}

func (s *Session) close() {
	s.setWatch("", nil)
}
