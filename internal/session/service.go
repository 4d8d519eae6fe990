package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/satd/internal/analysis"
	"github.com/starford/satd/internal/annotation"
	"github.com/starford/satd/internal/apperr"
	"github.com/starford/satd/internal/catalog"
	"github.com/starford/satd/internal/classify"
	"github.com/starford/satd/internal/export"
	"github.com/starford/satd/internal/ingest"
	"github.com/starford/satd/internal/manifest"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/sse"
	"github.com/starford/satd/internal/storage"
	"github.com/starford/satd/internal/watch"
)

// ModelMissing is echoed as aiModelUsed when no analyzer is configured.
const ModelMissing = "N/A - API Key Missing"

// NoContentMessage is the analysis failure text for files without a
// preview or payload.
const NoContentMessage = "No content available for AI analysis."

// Publisher receives session events.
type Publisher interface {
	Publish(event sse.Event)
	PublishNodeEvent(kind, session, path string)
}

// Options configures a Service. Only Ingest is required.
type Options struct {
	Ingest   ingest.Options
	Analyzer analysis.Analyzer
	// PersistFailures writes the diagnostic text of a failed analysis into
	// the node's aiSummary.
	PersistFailures bool
	// Settings is the pass-through manifest settings block. AIModelUsed is
	// filled in at export time.
	Settings manifest.Settings
	// Exports keeps finished archives. Nil keeps them in memory only.
	Exports storage.Provider
	Catalog catalog.Catalog
	Events  Publisher
	// WatchDebounce enables re-ingestion of directory-backed sessions when
	// their files change. Zero disables it.
	WatchDebounce time.Duration
	// AllowedRoots limits IngestDir to directories under these paths. Empty
	// allows any readable directory.
	AllowedRoots []string
}

// Service owns every session.
type Service struct {
	pipeline        *ingest.Pipeline
	analyzer        analysis.Analyzer
	persistFailures bool
	settings        manifest.Settings
	packager        *export.Packager
	exports         storage.Provider
	catalog         catalog.Catalog
	events          Publisher
	watchDebounce   time.Duration
	allowedRoots    []string
	logger          *slog.Logger
	now             func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a Service.
func NewService(opts Options, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := ingest.New(opts.Ingest, logger)
	if err != nil {
		return nil, err
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.Disabled{}
	}
	roots, err := cleanRoots(opts.AllowedRoots)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		pipeline:        p,
		analyzer:        opts.Analyzer,
		persistFailures: opts.PersistFailures,
		settings:        opts.Settings,
		packager:        export.NewPackager(),
		exports:         opts.Exports,
		catalog:         opts.Catalog,
		events:          opts.Events,
		watchDebounce:   opts.WatchDebounce,
		allowedRoots:    roots,
		logger:          logger,
		now:             time.Now,
		ctx:             ctx,
		cancel:          cancel,
		sessions:        make(map[string]*Session),
	}, nil
}

// Close stops every directory watcher.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.close()
	}
}

func (s *Service) publish(typ, session string, data any) {
	if s.events != nil {
		s.events.Publish(sse.Event{Type: typ, Session: session, Data: data})
	}
}

func (s *Service) publishNode(kind, session, path string) {
	if s.events != nil {
		s.events.PublishNodeEvent(kind, session, path)
	}
}

// Create registers a new empty session.
func (s *Service) Create(_ context.Context, project manifest.Project) (*Info, error) {
	sess := newSession(uuid.NewString(), project, s.now().UTC())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session: created", slog.String("session", sess.ID))
	info := sess.Info()
	return &info, nil
}

// Get returns the session with the given id.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return sess, nil
}

// List returns every session, oldest first.
func (s *Service) List(_ context.Context) []Info {
	s.mu.RLock()
	out := make([]Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Info())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Delete discards a session and stops its watcher.
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	sess.close()
	s.logger.Info("session: deleted", slog.String("session", id))
	s.publish(sse.SessionDeleted, id, map[string]string{})
	return nil
}

// UpdateDetails replaces the narrative fields.
func (s *Service) UpdateDetails(_ context.Context, id string, project manifest.Project) (*Info, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.project = project
	sess.mu.Unlock()
	s.publish(sse.ManifestChanged, id, map[string]string{})
	info := sess.Info()
	return &info, nil
}

// Ingest replaces the session tree with the files of src and stops any
// directory watch. On failure the tree is reset to empty and the error is
// returned as *apperr.IngestionError. A successful ingest starts a new
// project: the name becomes the root name and the other narrative fields
// are cleared.
func (s *Service) Ingest(ctx context.Context, id string, src ingest.Source) (*ingest.Result, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	res, _, err := s.ingest(ctx, sess, src, false)
	return res, err
}

// ingest runs one ingestion. A user ingestion stops the current watch
// before reserving its generation. A watcher re-ingestion (rescan) gives
// up when its watch was stopped first and keeps the narrative fields.
func (s *Service) ingest(ctx context.Context, sess *Session, src ingest.Source, rescan bool) (*ingest.Result, uint64, error) {
	sess.ingestMu.Lock()
	if rescan {
		if err := ctx.Err(); err != nil {
			sess.ingestMu.Unlock()
			return nil, 0, err
		}
	} else {
		sess.setWatch("", nil)
	}
	gen := sess.store.Begin()
	sess.ingestMu.Unlock()

	res, err := s.pipeline.Run(ctx, src)
	if err != nil {
		// A newer ingestion owns the tree if this fails as stale.
		_ = sess.store.Install(gen, nil)
		s.logger.Warn("session: ingest failed",
			slog.String("session", sess.ID),
			slog.String("error", err.Error()))
		return nil, 0, err
	}
	if err := sess.store.Install(gen, res.Roots); err != nil {
		return nil, 0, err
	}

	if !rescan {
		sess.mu.Lock()
		sess.project = manifest.Project{Name: res.RootName}
		sess.mu.Unlock()
	}

	s.publish(sse.SessionIngested, sess.ID, map[string]any{
		"generation": gen,
		"root":       res.RootName,
		"files":      res.Files,
		"dirs":       res.Dirs,
	})
	return res, gen, nil
}

// IngestDir ingests a local directory. The directory name becomes the root
// segment of every path. When watching is enabled the session is ingested
// again whenever files under dir change. Directories outside the allowed
// roots are rejected with apperr.ErrForbidden and leave the session as is.
func (s *Service) IngestDir(ctx context.Context, id, dir string) (*ingest.Result, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if !s.allowed(abs) {
		return nil, fmt.Errorf("directory %s is outside the allowed roots: %w", dir, apperr.ErrForbidden)
	}
	fs, err := storage.NewFS(abs)
	if err != nil {
		sess.ingestMu.Lock()
		sess.setWatch("", nil)
		sess.store.Reset()
		sess.ingestMu.Unlock()
		return nil, &apperr.IngestionError{Source: dir, Err: err}
	}
	res, gen, err := s.ingest(ctx, sess, ingest.NewDirSource(fs), false)
	if err != nil {
		return nil, err
	}

	sess.ingestMu.Lock()
	defer sess.ingestMu.Unlock()
	// A later ingestion owns the session now.
	if sess.store.Reserved() != gen {
		return res, nil
	}
	if s.watchDebounce > 0 {
		s.startWatch(sess, fs)
	} else {
		sess.setWatch(fs.Root(), nil)
	}
	return res, nil
}

// allowed reports whether dir lies under one of the allowed roots.
func (s *Service) allowed(dir string) bool {
	if len(s.allowedRoots) == 0 {
		return true
	}
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		dir = real
	}
	for _, root := range s.allowedRoots {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

func cleanRoots(roots []string) ([]string, error) {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("session: allowed root %s: %w", r, err)
		}
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		out = append(out, abs)
	}
	return out, nil
}

// startWatch must be called with sess.ingestMu held.
func (s *Service) startWatch(sess *Session, fs *storage.FS) {
	wctx, stop := context.WithCancel(s.ctx)
	sess.setWatch(fs.Root(), stop)

	opts := watch.Options{
		Debounce: s.watchDebounce,
		Ignore: func(rel string) bool {
			return strings.HasPrefix(path.Base(rel), storage.TempPrefix) || s.pipeline.Excluded(fs.Name()+"/"+rel)
		},
	}
	go func() {
		err := watch.Watch(wctx, fs.Root(), opts, s.logger, func(paths []string) {
			s.logger.Info("session: source changed, re-ingesting",
				slog.String("session", sess.ID),
				slog.Int("changes", len(paths)))
			if _, _, err := s.ingest(wctx, sess, ingest.NewDirSource(fs), true); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("session: re-ingest failed",
					slog.String("session", sess.ID),
					slog.String("error", err.Error()))
			}
		})
		if err != nil {
			s.logger.Warn("session: watcher failed",
				slog.String("session", sess.ID),
				slog.String("error", err.Error()))
		}
	}()
}

// Clear discards the tree of a session.
func (s *Service) Clear(_ context.Context, id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	sess.ingestMu.Lock()
	sess.setWatch("", nil)
	sess.store.Reset()
	sess.ingestMu.Unlock()
	s.publish(sse.ManifestChanged, id, map[string]string{})
	return nil
}

// UpdateNode applies an annotation patch. Directories only accept the
// Directory classification and files never do.
func (s *Service) UpdateNode(_ context.Context, id, path string, p annotation.Patch) (*models.Node, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	n, ok := sess.store.Node(path)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", path, apperr.ErrNotFound)
	}
	if p.Classification != nil {
		c, err := models.ParseClassification(string(*p.Classification))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
		}
		if (c == models.Directory) != n.IsDir() {
			return nil, fmt.Errorf("%w: classification %q does not apply to %s", apperr.ErrInvalidInput, c, n.Kind)
		}
	}

	updated, ok := sess.store.Update(path, p)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", path, apperr.ErrNotFound)
	}
	s.publishNode(sse.NodeUpdated, id, path)
	return updated, nil
}

// Focus selects the node at path. An empty path clears the focus.
func (s *Service) Focus(_ context.Context, id, path string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	return sess.store.SetFocus(path)
}

// ToggleExpanded flips a directory between expanded and collapsed.
func (s *Service) ToggleExpanded(_ context.Context, id, path string) (bool, error) {
	sess, err := s.Get(id)
	if err != nil {
		return false, err
	}
	n, ok := sess.store.Node(path)
	if !ok {
		return false, fmt.Errorf("node %s: %w", path, apperr.ErrNotFound)
	}
	if !n.IsDir() {
		return false, fmt.Errorf("%w: %s is not a directory", apperr.ErrInvalidInput, path)
	}
	return sess.store.ToggleExpanded(path), nil
}

// AnalysisRequest builds the analyzer input for a file node.
func AnalysisRequest(n *models.Node) (analysis.Request, error) {
	req := analysis.Request{Path: n.Path, FileName: n.Name, MimeType: n.MimeHint}
	switch {
	case classify.IsTextLike(n.Name, n.MimeHint) && n.TextPreview != nil:
		req.IsText = true
		req.Payload = *n.TextPreview
	case n.EncodedPayload != nil:
		req.Payload = *n.EncodedPayload
	default:
		return req, &apperr.AnalysisError{Path: n.Path, Message: NoContentMessage, Err: apperr.ErrNoContent}
	}
	return req, nil
}

// Analyze asks the analyzer for a summary of the file at path and merges
// it into the tree. The result is dropped with apperr.ErrStaleGeneration
// when a newer ingestion replaced the tree meanwhile. Other fields edited
// during the call are kept.
func (s *Service) Analyze(ctx context.Context, id, path string) (*models.Node, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	gen := sess.store.Generation()
	n, ok := sess.store.Node(path)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", path, apperr.ErrNotFound)
	}
	if n.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", apperr.ErrInvalidInput, path)
	}

	req, err := AnalysisRequest(n)
	if err == nil {
		var summary string
		summary, err = s.analyzer.Analyze(ctx, req)
		if err == nil {
			updated, uerr := sess.store.UpdateAt(gen, path, annotation.Patch{AISummary: &summary})
			if uerr != nil {
				return nil, uerr
			}
			s.logger.Info("session: analysis completed",
				slog.String("session", id),
				slog.String("file", path))
			s.publishNode(sse.AnalysisCompleted, id, path)
			return updated, nil
		}
	}

	s.logger.Warn("session: analysis failed",
		slog.String("session", id),
		slog.String("file", path),
		slog.String("error", err.Error()))
	var ae *apperr.AnalysisError
	if s.persistFailures && errors.As(err, &ae) {
		msg := ae.Message
		if _, uerr := sess.store.UpdateAt(gen, path, annotation.Patch{AISummary: &msg}); uerr == nil {
			s.publishNode(sse.AnalysisFailed, id, path)
		}
	}
	return nil, err
}

// Settings returns the manifest settings block with the model label
// resolved.
func (s *Service) Settings() manifest.Settings {
	st := s.settings
	switch {
	case st.LocalLLMEnabled != nil && *st.LocalLLMEnabled:
		st.AIModelUsed = "Local: " + st.LocalLLMModelType
	case s.analyzer.Available():
		st.AIModelUsed = s.analyzer.Model()
	default:
		st.AIModelUsed = ModelMissing
	}
	return st
}

// Document assembles the manifest document of a session as of now.
func (s *Service) Document(_ context.Context, id string) (manifest.Document, error) {
	sess, err := s.Get(id)
	if err != nil {
		return manifest.Document{}, err
	}
	return s.document(sess), nil
}

func (s *Service) document(sess *Session) manifest.Document {
	proj := sess.Project()
	return manifest.Document{
		Version:         manifest.Version,
		ProjectName:     proj.Name,
		GenerationDate:  s.now().UTC(),
		Settings:        s.Settings(),
		ProjectOverview: proj.Overview,
		FileManifest:    manifest.Entries(sess.store.Roots()),
	}
}

// Manifest renders the sAtddef.yaml text of a session.
func (s *Service) Manifest(ctx context.Context, id string) ([]byte, error) {
	doc, err := s.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	return manifest.Marshal(doc)
}

// Report renders the report document of a session.
func (s *Service) Report(_ context.Context, id string) (string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return manifest.Report(sess.Project(), manifest.Entries(sess.store.Roots())), nil
}
