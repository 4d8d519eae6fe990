package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/satd/internal/annotation"
	"github.com/starford/satd/internal/ingest"
	"github.com/starford/satd/internal/manifest"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/session"
)

const maxJSONBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *session.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *session.Service) *Handler {
	return &Handler{svc: svc}
}

// nodePath extracts the node path from the wildcard part of the URL.
// Supports encoded slashes from OpenAPI clients (e.g. proj%2Fa.txt).
func nodePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListSessions handles GET /api/sessions.
//
//	@Summary		List sessions
//	@Tags			sessions
//	@Produce		json
//	@Success		200	{object}	SessionListResponse
//	@Security		BearerAuth
//	@Router			/sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: h.svc.List(r.Context())})
}

// CreateSession handles POST /api/sessions. The body is optional.
//
//	@Summary		Create a session
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ProjectRequest	false	"Narrative fields"
//	@Success		201		{object}	SessionInfo
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	info, err := h.svc.Create(r.Context(), req.project())
	if err != nil {
		writeError(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get a session with its tree
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SessionDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Detail())
}

// DeleteSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Delete a session
//	@Tags			sessions
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Session deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateDetails handles PUT /api/sessions/{id}/details.
//
//	@Summary		Replace the narrative fields
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		ProjectRequest	true	"Narrative fields"
//	@Success		200		{object}	SessionInfo
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/details [put]
func (h *Handler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	info, err := h.svc.UpdateDetails(r.Context(), chi.URLParam(r, "id"), req.project())
	if err != nil {
		writeError(w, "update details", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Ingest handles POST /api/sessions/{id}/ingest. A multipart body uploads
// the selection; a JSON body {"dir": "..."} ingests a local directory.
//
//	@Summary		Replace the project tree
//	@Tags			ingest
//	@Accept			mpfd,json
//	@Produce		json
//	@Param			id		path		string				true	"Session ID"
//	@Param			body	body		IngestDirRequest	false	"Local directory"
//	@Success		200		{object}	IngestResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/ingest [post]
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		res *ingest.Result
		err error
	)
	switch mediaType {
	case "multipart/form-data":
		uploads, perr := parseUploads(w, r)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(perr.Error()))
			return
		}
		res, err = h.svc.Ingest(r.Context(), id, ingest.NewUploadSource(uploads))
	case "application/json":
		var req IngestDirRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Dir == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("dir is required"))
			return
		}
		res, err = h.svc.IngestDir(r.Context(), id, req.Dir)
	default:
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody("expected multipart/form-data or application/json"))
		return
	}
	if err != nil {
		writeError(w, "ingest", err)
		return
	}

	sess, err := h.svc.Get(id)
	if err != nil {
		writeError(w, "ingest", err)
		return
	}
	writeJSON(w, http.StatusOK, IngestResponse{
		RootName:   res.RootName,
		Files:      res.Files,
		Dirs:       res.Dirs,
		Excluded:   res.Excluded,
		Generation: sess.Store().Generation(),
	})
}

// GetTree handles GET /api/sessions/{id}/tree.
//
//	@Summary		Get the current tree
//	@Tags			tree
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	TreeResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/tree [get]
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get tree", err)
		return
	}
	snap := sess.Store().Snapshot()
	writeJSON(w, http.StatusOK, TreeResponse{
		Generation: snap.Generation,
		Tree:       snap.Roots,
		Focus:      snap.Focus,
		Expanded:   snap.Expanded,
	})
}

// ClearTree handles DELETE /api/sessions/{id}/tree.
//
//	@Summary		Discard the current tree
//	@Tags			tree
//	@Param			id	path	string	true	"Session ID"
//	@Success		204	"Tree cleared"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/tree [delete]
func (h *Handler) ClearTree(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "clear tree", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatchNode handles PATCH /api/sessions/{id}/nodes/*.
//
//	@Summary		Annotate a node
//	@Tags			tree
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Session ID"
//	@Param			path	path		string				true	"Node path"
//	@Param			body	body		NodePatchRequest	true	"Fields to change"
//	@Success		200		{object}	models.Node
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/nodes/{path} [patch]
func (h *Handler) PatchNode(w http.ResponseWriter, r *http.Request) {
	path := nodePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req NodePatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var p annotation.Patch
	if req.UserDefinedType != nil {
		c, err := models.ParseClassification(*req.UserDefinedType)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		p.Classification = &c
	}
	p.Tags = req.Tags
	p.RelationshipNotes = req.Relationships
	if p.Empty() {
		writeJSON(w, http.StatusBadRequest, errorBody("nothing to update"))
		return
	}

	n, err := h.svc.UpdateNode(r.Context(), chi.URLParam(r, "id"), path, p)
	if err != nil {
		writeError(w, "update node", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Focus handles PUT /api/sessions/{id}/focus.
//
//	@Summary		Focus a node
//	@Tags			tree
//	@Accept			json
//	@Param			id		path	string			true	"Session ID"
//	@Param			body	body	FocusRequest	true	"Node path"
//	@Success		204		"Focus changed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/focus [put]
func (h *Handler) Focus(w http.ResponseWriter, r *http.Request) {
	var req FocusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.Focus(r.Context(), chi.URLParam(r, "id"), req.Path); err != nil {
		writeError(w, "focus", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleExpanded handles POST /api/sessions/{id}/expanded/*.
//
//	@Summary		Expand or collapse a directory
//	@Tags			tree
//	@Produce		json
//	@Param			id		path		string	true	"Session ID"
//	@Param			path	path		string	true	"Directory path"
//	@Success		200		{object}	ExpandedResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/expanded/{path} [post]
func (h *Handler) ToggleExpanded(w http.ResponseWriter, r *http.Request) {
	path := nodePath(r)
	open, err := h.svc.ToggleExpanded(r.Context(), chi.URLParam(r, "id"), path)
	if err != nil {
		writeError(w, "toggle expanded", err)
		return
	}
	writeJSON(w, http.StatusOK, ExpandedResponse{Path: path, Expanded: open})
}

// Analyze handles POST /api/sessions/{id}/analyze/*.
//
//	@Summary		Summarise a file with the AI analyzer
//	@Tags			analysis
//	@Produce		json
//	@Param			id		path		string	true	"Session ID"
//	@Param			path	path		string	true	"File path"
//	@Success		200		{object}	models.Node
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/analyze/{path} [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	path := nodePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	n, err := h.svc.Analyze(r.Context(), chi.URLParam(r, "id"), path)
	if err != nil {
		writeError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Manifest handles GET /api/sessions/{id}/manifest.
//
//	@Summary		Render the sAtddef.yaml manifest
//	@Tags			documents
//	@Produce		plain
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/manifest [get]
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Manifest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "manifest", err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Report handles GET /api/sessions/{id}/report.
//
//	@Summary		Render the report document
//	@Tags			documents
//	@Produce		plain
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/report [get]
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "report", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// Export handles GET /api/sessions/{id}/export.
//
//	@Summary		Download the export archive
//	@Tags			documents
//	@Produce		application/zip
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := h.svc.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "export", err)
		return
	}
	writeArchive(w, exp.Name, exp.Checksum, exp.Data)
}

func writeArchive(w http.ResponseWriter, name, checksum string, data []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", fmt.Sprintf("%q", checksum))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListExports handles GET /api/exports. With q set, entries of every
// export are searched instead.
//
//	@Summary		List or search recorded exports
//	@Tags			exports
//	@Produce		json
//	@Param			q		query		string	false	"Search query"
//	@Param			session	query		string	false	"Only exports of this session"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	ExportListResponse
//	@Security		BearerAuth
//	@Router			/exports [get]
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	if query := q.Get("q"); query != "" {
		results, err := h.svc.SearchExports(r.Context(), query, limit)
		if err != nil {
			slog.Error("search exports failed", slog.String("query", query), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		writeJSON(w, http.StatusOK, SearchResponse{Results: results})
		return
	}

	offset, _ := strconv.Atoi(q.Get("offset"))
	rows, total, err := h.svc.ListExports(r.Context(), q.Get("session"), limit, offset)
	if err != nil {
		writeError(w, "list exports", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportListResponse{Exports: rows, Total: total})
}

// DownloadExport handles GET /api/exports/{id}.
//
//	@Summary		Download a stored archive
//	@Tags			exports
//	@Produce		application/zip
//	@Param			id	path		string	true	"Export ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports/{id} [get]
func (h *Handler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	row, data, err := h.svc.ReadExport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "download export", err)
		return
	}
	writeArchive(w, row.ArchiveName, row.Checksum, data)
}

// DeleteExport handles DELETE /api/exports/{id}.
//
//	@Summary		Delete a recorded export
//	@Tags			exports
//	@Param			id	path	string	true	"Export ID"
//	@Success		204	"Export deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports/{id} [delete]
func (h *Handler) DeleteExport(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteExport(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete export", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Schema handles GET /api/schema.
//
//	@Summary		JSON Schema of the manifest
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	object
//	@Router			/schema [get]
func (h *Handler) Schema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(manifest.Schema()))
}
