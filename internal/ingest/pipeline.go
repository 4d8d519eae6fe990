// Package ingest turns a selection of files into a built project tree:
// content is loaded for every file concurrently, images are scanned for QR
// codes, and the results are assembled by the tree builder.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/starford/satd/internal/apperr"
	"github.com/starford/satd/internal/classify"
	"github.com/starford/satd/internal/content"
	"github.com/starford/satd/internal/models"
	"github.com/starford/satd/internal/qr"
	"github.com/starford/satd/internal/tree"
)

// DefaultRootName names a selection whose files carry no folder segment.
const DefaultRootName = "UntitledProject"

// Options configures a Pipeline.
type Options struct {
	TextPreviewLimit int64
	AIPayloadLimit   int64
	// Workers bounds concurrent file loads. Zero means unbounded.
	Workers int
	// Exclude holds glob patterns matched against each file's full path
	// and its base name.
	Exclude  []string
	DecodeQR bool
}

// Pipeline loads and assembles one selection at a time. It is safe for
// concurrent use.
type Pipeline struct {
	loader   *content.Loader
	workers  int
	exclude  []glob.Glob
	decodeQR bool
	logger   *slog.Logger
}

// Result is a built tree.
type Result struct {
	RootName string
	Roots    []*models.Node
	Files    int
	Dirs     int
	Excluded int
}

// New compiles opts into a Pipeline.
func New(opts Options, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		loader:   content.NewLoader(opts.TextPreviewLimit, opts.AIPayloadLimit, logger),
		workers:  opts.Workers,
		decodeQR: opts.DecodeQR,
		logger:   logger,
	}
	for _, pat := range opts.Exclude {
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return nil, fmt.Errorf("ingest: compile exclude %q: %w", pat, err)
		}
		p.exclude = append(p.exclude, g)
	}
	return p, nil
}

// Excluded reports whether the slash-separated path p, or its base name,
// matches an exclude pattern.
func (p *Pipeline) Excluded(path string) bool {
	base := path[strings.LastIndexByte(path, '/')+1:]
	for _, g := range p.exclude {
		if g.Match(path) || g.Match(base) {
			return true
		}
	}
	return false
}

// Run ingests every file of src. Per-file failures degrade that file's
// fields and never abort the run. Failing to enumerate src, or a selection
// with no files, is returned as *apperr.IngestionError.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	start := time.Now()

	all, err := src.Files(ctx)
	if err != nil {
		return nil, &apperr.IngestionError{Source: src.Name(), Err: err}
	}

	files := make([]File, 0, len(all))
	for _, f := range all {
		f = validPath(f)
		if p.Excluded(f.Path()) {
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, &apperr.IngestionError{Source: src.Name(), Err: apperr.ErrEmptyIngestion}
	}

	records := make([]tree.Record, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	if p.workers > 0 {
		g.SetLimit(p.workers)
	}
	for i, f := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			records[i] = p.load(gCtx, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &apperr.IngestionError{Source: src.Name(), Err: err}
	}

	roots := tree.Build(records)
	nFiles, nDirs := tree.Count(roots)
	res := &Result{
		RootName: RootName(files),
		Roots:    roots,
		Files:    nFiles,
		Dirs:     nDirs,
		Excluded: len(all) - len(files),
	}

	p.logger.Info("ingest: tree built",
		slog.String("source", src.Name()),
		slog.String("root", res.RootName),
		slog.Int("files", res.Files),
		slog.Int("dirs", res.Dirs),
		slog.Int("excluded", res.Excluded),
		slog.Duration("took", time.Since(start)))
	return res, nil
}

func (p *Pipeline) load(ctx context.Context, f File) tree.Record {
	res := p.loader.Load(ctx, f)
	rec := tree.Record{
		Path:           f.Path(),
		Size:           f.Size(),
		MimeHint:       strings.ToValidUTF8(f.MimeType(), ""),
		TextPreview:    res.TextPreview,
		EncodedPayload: res.EncodedPayload,
	}
	if p.decodeQR && res.EncodedPayload != nil && classify.IsImageLike(f.Name(), rec.MimeHint) {
		if text, ok := qr.Decode(*res.EncodedPayload, rec.MimeHint); ok {
			rec.QRPayload = strings.ToValidUTF8(text, "\uFFFD")
			p.logger.Debug("ingest: qr decoded", slog.String("file", rec.Path))
		}
	}
	return rec
}

// renamed overrides the path of a file whose name is not valid UTF-8.
type renamed struct {
	File
	path string
}

func (r renamed) Path() string { return r.path }
func (r renamed) Name() string { return baseName(r.path) }

// validPath replaces invalid UTF-8 in the path of f with U+FFFD.
func validPath(f File) File {
	if utf8.ValidString(f.Path()) {
		return f
	}
	return renamed{File: f, path: strings.ToValidUTF8(f.Path(), "\uFFFD")}
}

// RootName is the first path segment of the first file, or DefaultRootName.
func RootName(files []File) string {
	if len(files) == 0 {
		return DefaultRootName
	}
	segs := tree.SplitPath(files[0].Path())
	if len(segs) < 2 {
		return DefaultRootName
	}
	return segs[0]
}
