package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/satd/internal/apperr"
	"github.com/starford/satd/internal/catalog"
	"github.com/starford/satd/internal/checksum"
	"github.com/starford/satd/internal/manifest"
	"github.com/starford/satd/internal/sse"
	"github.com/starford/satd/internal/tree"
)

// Export is a finished archive.
type Export struct {
	ID          string    `json:"id"`
	Name        string    `json:"archiveName"`
	Checksum    string    `json:"checksum"`
	StoredPath  string    `json:"storedPath,omitempty"`
	Entries     int       `json:"entryCount"`
	GeneratedAt time.Time `json:"generatedAt"`
	Data        []byte    `json:"-"`
}

// Export renders both documents, checks the manifest against its schema
// and packages them. A session with no files and no overview has nothing
// to export. The archive is kept in the export directory and recorded in
// the catalog when those are configured; failing to do either is logged
// and does not fail the export.
func (s *Service) Export(_ context.Context, id string) (*Export, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	doc := s.document(sess)
	files, _ := tree.Count(sess.store.Roots())
	if files == 0 && strings.TrimSpace(doc.ProjectOverview) == "" {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNothingToExport)
	}

	yml, err := manifest.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err := manifest.Verify(yml); err != nil {
		return nil, &apperr.SerializationError{Field: "manifest", Err: err}
	}
	report := manifest.Report(sess.Project(), doc.FileManifest)

	pkg, err := s.packager.Build(doc.ProjectName, []byte(report), yml)
	if err != nil {
		return nil, err
	}

	sum := checksum.Sum(pkg.Data)
	out := &Export{
		ID:          checksum.ShortID(sum),
		Name:        pkg.Name,
		Checksum:    sum,
		Entries:     len(doc.FileManifest),
		GeneratedAt: doc.GenerationDate,
		Data:        pkg.Data,
	}

	if s.exports != nil {
		stored := out.ID + "/" + pkg.Name
		if err := s.exports.Write(stored, pkg.Data); err != nil {
			s.logger.Warn("session: store export failed",
				slog.String("session", id),
				slog.String("error", err.Error()))
		} else {
			out.StoredPath = stored
		}
	}

	if s.catalog != nil {
		row := catalog.ExportRow{
			ID:          out.ID,
			SessionID:   id,
			ProjectName: doc.ProjectName,
			ArchiveName: pkg.Name,
			StoredPath:  out.StoredPath,
			Checksum:    sum,
			SizeBytes:   int64(len(pkg.Data)),
			GeneratedAt: doc.GenerationDate,
		}
		if err := s.catalog.RecordExport(row, catalog.EntryRows(doc.FileManifest)); err != nil {
			s.logger.Warn("session: catalog record failed",
				slog.String("session", id),
				slog.String("error", err.Error()))
		}
	}

	s.logger.Info("session: exported",
		slog.String("session", id),
		slog.String("archive", pkg.Name),
		slog.Int("entries", out.Entries),
		slog.Int("bytes", len(pkg.Data)))
	s.publish(sse.ExportCreated, id, out)
	return out, nil
}

// ListExports returns recorded exports, newest first.
func (s *Service) ListExports(_ context.Context, sessionID string, limit, offset int) ([]catalog.ExportRow, int, error) {
	if s.catalog == nil {
		return []catalog.ExportRow{}, 0, nil
	}
	return s.catalog.ListExports(sessionID, limit, offset)
}

// SearchExports searches the entries of every recorded export.
func (s *Service) SearchExports(_ context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	if s.catalog == nil {
		return []catalog.SearchResult{}, nil
	}
	return s.catalog.Search(query, limit)
}

// GetExport returns a recorded export.
func (s *Service) GetExport(_ context.Context, id string) (*catalog.ExportRow, error) {
	if s.catalog == nil {
		return nil, fmt.Errorf("export %s: %w", id, apperr.ErrNotFound)
	}
	return s.catalog.GetExport(id)
}

// ReadExport returns the archive bytes of a stored export.
func (s *Service) ReadExport(ctx context.Context, id string) (*catalog.ExportRow, []byte, error) {
	row, err := s.GetExport(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if s.exports == nil || row.StoredPath == "" {
		return nil, nil, fmt.Errorf("export %s archive: %w", id, apperr.ErrNotFound)
	}
	data, err := s.exports.Read(row.StoredPath)
	if err != nil {
		return nil, nil, fmt.Errorf("export %s archive: %w", id, apperr.ErrNotFound)
	}
	return row, data, nil
}

// DeleteExport forgets an export and removes its stored archive.
func (s *Service) DeleteExport(ctx context.Context, id string) error {
	row, err := s.GetExport(ctx, id)
	if err != nil {
		return err
	}
	if s.exports != nil && row.StoredPath != "" {
		if err := s.exports.Delete(row.StoredPath); err != nil {
			s.logger.Warn("session: delete stored export failed",
				slog.String("export", id),
				slog.String("error", err.Error()))
		}
	}
	return s.catalog.DeleteExport(id)
}
