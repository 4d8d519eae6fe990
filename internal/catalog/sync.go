package catalog

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/starford/satd/internal/checksum"
	"github.com/starford/satd/internal/export"
	"github.com/starford/satd/internal/manifest"
	"github.com/starford/satd/internal/storage"
)

// ArchiveSuffix marks archives the catalog tracks in the export directory.
const ArchiveSuffix = ".sAtd.zip"

// EntryRows converts manifest entries to catalog rows.
func EntryRows(entries []manifest.Entry) []EntryRow {
	out := make([]EntryRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryRow{
			Path:           e.Path,
			Type:           string(e.Type),
			Classification: string(e.UserDefinedType),
			Tags:           e.Tags,
			Summary:        e.AISummary,
		})
	}
	return out
}

// Sync walks the export directory and brings the catalog up to date:
//   - archives that are new or changed on disk are read and recorded
//   - exports whose stored archive is gone are deleted
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.Walk("")
	if err != nil {
		return err
	}

	stored, err := db.StoredPaths()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if !strings.HasSuffix(m.Path, ArchiveSuffix) {
			continue
		}
		disk[m.Path] = struct{}{}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("catalog sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		cs := checksum.Sum(data)
		if stored[m.Path] == cs {
			continue
		}
		if err := indexArchive(db, m.Path, data, cs); err != nil {
			logger.Warn("catalog sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("catalog sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove exports whose archive disappeared.
	for p := range stored {
		if _, ok := disk[p]; ok {
			continue
		}
		id, err := db.exportIDByStoredPath(p)
		if err != nil || id == "" {
			continue
		}
		if err := db.DeleteExport(id); err != nil {
			logger.Warn("catalog sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("catalog sync: removed stale", slog.String("path", p))
		}
	}

	return nil
}

// indexArchive reads the manifest inside an archive and records it.
func indexArchive(db *DB, path string, data []byte, cs string) error {
	doc, err := ReadArchiveManifest(data)
	if err != nil {
		return err
	}

	id, err := db.exportIDByStoredPath(path)
	if err != nil {
		return fmt.Errorf("catalog: lookup %s: %w", path, err)
	}
	if id == "" {
		id = checksum.ShortID(cs)
	}

	row := ExportRow{
		ID:          id,
		ProjectName: doc.ProjectName,
		ArchiveName: path[strings.LastIndexByte(path, '/')+1:],
		StoredPath:  path,
		Checksum:    cs,
		SizeBytes:   int64(len(data)),
		GeneratedAt: doc.GenerationDate,
	}
	return db.RecordExport(row, EntryRows(doc.FileManifest))
}

// ReadArchiveManifest extracts and decodes the manifest of an archive.
func ReadArchiveManifest(data []byte) (manifest.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return manifest.Document{}, fmt.Errorf("catalog: open archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != export.ManifestFileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return manifest.Document{}, fmt.Errorf("catalog: open manifest: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return manifest.Document{}, fmt.Errorf("catalog: read manifest: %w", err)
		}
		return manifest.Decode(raw)
	}
	return manifest.Document{}, fmt.Errorf("catalog: archive has no %s", export.ManifestFileName)
}
