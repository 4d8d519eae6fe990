// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes satd sessions for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/satd/internal/annotation"
	"github.com/starford/satd/internal/apperr"
	"github.com/starford/satd/internal/manifest"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/session"
)

const (
	formatURI = "satd://manifest-format"
	schemaURI = "satd://manifest-schema"
)

// Server wraps the MCP server with satd tools. Tools act on the default
// session unless a "session" argument names another one.
type Server struct {
	mcp       *server.MCPServer
	svc       *session.Service
	defaultID string
	logger    *slog.Logger
}

// New creates a new MCP server with all satd tools registered and a
// default session to work on.
func New(ctx context.Context, svc *session.Service, version string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := svc.Create(ctx, manifest.Project{})
	if err != nil {
		return nil, fmt.Errorf("mcpserver: default session: %w", err)
	}
	s := &Server{svc: svc, defaultID: info.ID, logger: logger}

	s.mcp = server.NewMCPServer(
		"satd",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	sessionArg := mcp.WithString("session", mcp.Description("Session ID (defaults to the server's session)"))

	s.mcp.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a new, empty session and return its ID."),
		mcp.WithString("projectName", mcp.Description("Project name")),
		mcp.WithString("overview", mcp.Description("Project overview")),
	), s.createSession)

	s.mcp.AddTool(mcp.NewTool("set_project_details",
		mcp.WithDescription("Replace the narrative fields written to the manifest and report."),
		sessionArg,
		mcp.WithString("projectName", mcp.Description("Project name")),
		mcp.WithString("overview", mcp.Description("Project overview")),
		mcp.WithString("prompts", mcp.Description("Prompts used while building the project")),
		mcp.WithString("sessionSummary", mcp.Description("Summary of the working session")),
		mcp.WithString("modules", mcp.Description("Modules of the project")),
	), s.setProjectDetails)

	s.mcp.AddTool(mcp.NewTool("ingest_directory",
		mcp.WithDescription("Replace the session tree with the contents of a local directory."),
		sessionArg,
		mcp.WithString("dir", mcp.Required(), mcp.Description("Absolute path of the project folder")),
	), s.ingestDirectory)

	s.mcp.AddTool(mcp.NewTool("ingest_files",
		mcp.WithDescription("Replace the session tree with the given files. Each file has a relative "+
			"path that starts with the root folder (e.g. game/rules.md) and either text content or a base64 data URI."),
		sessionArg,
		mcp.WithArray("files", mcp.Required(),
			mcp.Description("Files as {path, content} or {path, dataUri, mimeType}"),
			mcp.Items(map[string]any{"type": "object"})),
	), s.ingestFiles)

	s.mcp.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("List every node of the session tree in manifest order with its annotations."),
		sessionArg,
	), s.getTree)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read the text preview of a file in the session tree."),
		sessionArg,
		mcp.WithString("path", mcp.Required(), mcp.Description("Node path (e.g. game/rules.md)")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("update_node",
		mcp.WithDescription("Annotate a node. Absent arguments are left unchanged. "+
			"Read the format via get_manifest_contract for the allowed classifications."),
		sessionArg,
		mcp.WithString("path", mcp.Required(), mcp.Description("Node path")),
		mcp.WithString("userDefinedType", mcp.Description("Classification")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags (replaces existing tags)")),
		mcp.WithString("relationships", mcp.Description("Free-text relationship notes")),
	), s.updateNode)

	s.mcp.AddTool(mcp.NewTool("analyze_file",
		mcp.WithDescription("Summarise a file with the configured AI analyzer and store the summary."),
		sessionArg,
		mcp.WithString("path", mcp.Required(), mcp.Description("File path")),
	), s.analyzeFile)

	s.mcp.AddTool(mcp.NewTool("get_manifest",
		mcp.WithDescription("Render the sAtddef.yaml manifest of the session."),
		sessionArg,
	), s.getManifest)

	s.mcp.AddTool(mcp.NewTool("get_report",
		mcp.WithDescription("Render the plain-text report of the session."),
		sessionArg,
	), s.getReport)

	s.mcp.AddTool(mcp.NewTool("export_package",
		mcp.WithDescription("Build the .sAtd.zip archive, store it in the export directory and record it in the catalog."),
		sessionArg,
	), s.exportPackage)

	s.mcp.AddTool(mcp.NewTool("search_exports",
		mcp.WithDescription("Full-text search through the entries of every recorded export."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchExports)

	s.mcp.AddTool(mcp.NewTool("get_manifest_contract",
		mcp.WithDescription("Returns the manifest format and its JSON Schema. "+
			"Call this before annotating nodes to use values the manifest accepts."),
	), s.getManifestContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Manifest Format",
			mcp.WithResourceDescription("Format of the sAtddef.yaml manifest and the export archive."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)
	s.mcp.AddResource(
		mcp.NewResource(schemaURI, "Manifest Schema",
			mcp.WithResourceDescription("JSON Schema every exported manifest satisfies."),
			mcp.WithMIMEType("application/schema+json"),
		),
		s.readSchemaResource,
	)

	return s, nil
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// DefaultSession returns the ID of the session tools act on by default.
func (s *Server) DefaultSession() string {
	return s.defaultID
}

func (s *Server) sessionID(req mcp.CallToolRequest) string {
	return req.GetString("session", s.defaultID)
}

// toolError turns a service error into a tool result. Analysis failures
// carry their user-facing text.
func toolError(err error) *mcp.CallToolResult {
	var ae *apperr.AnalysisError
	if errors.As(err, &ae) {
		return mcp.NewToolResultError(ae.Message)
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func projectArgs(req mcp.CallToolRequest) manifest.Project {
	return manifest.Project{
		Name:           req.GetString("projectName", ""),
		Overview:       req.GetString("overview", ""),
		Prompts:        req.GetString("prompts", ""),
		SessionSummary: req.GetString("sessionSummary", ""),
		Modules:        req.GetString("modules", ""),
	}
}

func (s *Server) createSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.svc.Create(ctx, projectArgs(req))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(info), nil
}

func (s *Server) setProjectDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.svc.UpdateDetails(ctx, s.sessionID(req), projectArgs(req))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(info), nil
}

type ingestResult struct {
	RootName string `json:"rootName"`
	Files    int    `json:"files"`
	Dirs     int    `json:"dirs"`
	Excluded int    `json:"excluded"`
}

func (s *Server) ingestDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, err := req.RequireString("dir")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.IngestDir(ctx, s.sessionID(req), dir)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(ingestResult{res.RootName, res.Files, res.Dirs, res.Excluded}), nil
}

func (s *Server) ingestFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["files"]
	if !ok {
		return mcp.NewToolResultError("required argument \"files\" not found"), nil
	}
	src, err := memSource(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Ingest(ctx, s.sessionID(req), src)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(ingestResult{res.RootName, res.Files, res.Dirs, res.Excluded}), nil
}

func (s *Server) getTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.svc.Document(ctx, s.sessionID(req))
	if err != nil {
		return toolError(err), nil
	}
	if len(doc.FileManifest) == 0 {
		return mcp.NewToolResultText("the session tree is empty"), nil
	}
	return jsonResult(doc.FileManifest), nil
}

func (s *Server) readFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.svc.Get(s.sessionID(req))
	if err != nil {
		return toolError(err), nil
	}
	n, ok := sess.Store().Node(path)
	if !ok || n.IsDir() {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if n.TextPreview == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no text preview for %s", path)), nil
	}
	return mcp.NewToolResultText(*n.TextPreview), nil
}

func (s *Server) updateNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()

	var p annotation.Patch
	if v, err := req.RequireString("userDefinedType"); err == nil {
		c, err := models.ParseClassification(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p.Classification = &c
	}
	if _, ok := args["tags"]; ok {
		tags := annotation.ParseTags(req.GetString("tags", ""))
		p.Tags = &tags
	}
	if _, ok := args["relationships"]; ok {
		rel := req.GetString("relationships", "")
		p.RelationshipNotes = &rel
	}
	if p.Empty() {
		return mcp.NewToolResultError("nothing to update"), nil
	}

	n, err := s.svc.UpdateNode(ctx, s.sessionID(req), path, p)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (%s, tags: %v)", n.Path, n.Classification, n.Tags)), nil
}

func (s *Server) analyzeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Analyze(ctx, s.sessionID(req), path)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(n.AISummary), nil
}

func (s *Server) getManifest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.svc.Manifest(ctx, s.sessionID(req))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.svc.Report(ctx, s.sessionID(req))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) exportPackage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exp, err := s.svc.Export(ctx, s.sessionID(req))
	if err != nil {
		return toolError(err), nil
	}
	s.logger.Info("mcp: export created", slog.String("id", exp.ID), slog.String("name", exp.Name))
	return jsonResult(exp), nil
}

func (s *Server) searchExports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchExports(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getManifestContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ManifestFormatContract + "\n## JSON Schema\n\n```json\n" + manifest.Schema() + "\n```\n"), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ManifestFormatContract,
		},
	}, nil
}

func (s *Server) readSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemaURI,
			MIMEType: "application/schema+json",
			Text:     manifest.Schema(),
		},
	}, nil
}
