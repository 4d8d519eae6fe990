// Package export bundles the report and manifest documents into a single
// compressed archive.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/starford/satd/internal/apperr"
)

// ManifestFileName is the fixed archive name of the manifest document.
const ManifestFileName = "sAtddef.yaml"

// DefaultProjectName replaces a blank project name in file names.
const DefaultProjectName = "project"

// ReportFileName returns the archive name of the report document.
func ReportFileName(projectName string) string {
	return baseName(projectName) + ".sAtd"
}

// ArchiveName returns the download name of the archive.
func ArchiveName(projectName string) string {
	return baseName(projectName) + ".sAtd.zip"
}

func baseName(projectName string) string {
	name := strings.TrimSpace(projectName)
	if name == "" {
		return DefaultProjectName
	}
	// Keep the name usable as a single path segment.
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
}

// Package is a finished archive.
type Package struct {
	Name string
	Data []byte
}

// Packager builds archives in memory. Nothing is written anywhere until the
// archive is complete.
type Packager struct {
	now func() time.Time
}

// NewPackager creates a Packager.
func NewPackager() *Packager {
	return &Packager{now: time.Now}
}

// Build writes report and manifest into a zip archive. Any failure is
// returned as *apperr.PackagingError and no partial archive is produced.
func (p *Packager) Build(projectName string, report, manifest []byte) (*Package, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	modified := p.now()
	files := []struct {
		name string
		data []byte
	}{
		{ReportFileName(projectName), report},
		{ManifestFileName, manifest},
	}
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, &apperr.PackagingError{Err: fmt.Errorf("create %s: %w", f.name, err)}
		}
		if _, err := w.Write(f.data); err != nil {
			return nil, &apperr.PackagingError{Err: fmt.Errorf("write %s: %w", f.name, err)}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &apperr.PackagingError{Err: fmt.Errorf("close archive: %w", err)}
	}

	return &Package{Name: ArchiveName(projectName), Data: buf.Bytes()}, nil
}
