package api

import (
	"github.com/starford/satd/internal/catalog"
	"github.com/starford/satd/internal/manifest"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/session"
)

// ProjectRequest carries the narrative fields of a session.
type ProjectRequest struct {
	ProjectName    string `json:"projectName" example:"my-game"`
	Overview       string `json:"overview" example:"A tabletop RPG toolkit."`
	Prompts        string `json:"prompts"`
	SessionSummary string `json:"sessionSummary"`
	Modules        string `json:"modules"`
}

func (p ProjectRequest) project() manifest.Project {
	return manifest.Project{
		Name:           p.ProjectName,
		Overview:       p.Overview,
		Prompts:        p.Prompts,
		SessionSummary: p.SessionSummary,
		Modules:        p.Modules,
	}
}

// IngestDirRequest asks the server to ingest a local directory.
type IngestDirRequest struct {
	Dir string `json:"dir" example:"/home/me/projects/my-game" validate:"required"`
}

// IngestResponse summarises a finished ingestion.
type IngestResponse struct {
	RootName   string `json:"rootName" example:"my-game" validate:"required"`
	Files      int    `json:"files" example:"42" validate:"required"`
	Dirs       int    `json:"dirs" example:"7" validate:"required"`
	Excluded   int    `json:"excluded" example:"3"`
	Generation uint64 `json:"generation" example:"2" validate:"required"`
}

// NodePatchRequest is the annotation patch accepted by PATCH .../nodes/*.
// Absent fields are left unchanged.
type NodePatchRequest struct {
	UserDefinedType *string   `json:"userDefinedType,omitempty" example:"Code"`
	Tags            *[]string `json:"tags,omitempty"`
	Relationships   *string   `json:"relationships,omitempty"`
}

// FocusRequest selects a node. An empty path clears the focus.
type FocusRequest struct {
	Path string `json:"path" example:"my-game/rules.md"`
}

// TreeResponse is the current tree of a session.
type TreeResponse struct {
	Generation uint64         `json:"generation" validate:"required"`
	Tree       []*models.Node `json:"tree" validate:"required"`
	Focus      string         `json:"focus,omitempty"`
	Expanded   []string       `json:"expanded" validate:"required"`
}

// ExpandedResponse reports the new expanded state of a directory.
type ExpandedResponse struct {
	Path     string `json:"path" validate:"required"`
	Expanded bool   `json:"expanded"`
}

// SessionInfo is a session summary (aliased from the domain layer).
type SessionInfo = session.Info

// SessionDetail is a session with its tree (aliased from the domain layer).
type SessionDetail = session.Detail

// SessionListResponse wraps session listings.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions" validate:"required"`
}

// ExportListResponse wraps paginated export listings.
type ExportListResponse struct {
	Exports []catalog.ExportRow `json:"exports" validate:"required"`
	Total   int                 `json:"total" example:"3" validate:"required"`
}

// SearchResponse wraps catalog search results.
type SearchResponse struct {
	Results []catalog.SearchResult `json:"results" validate:"required"`
}
