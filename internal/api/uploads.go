package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/starford/satd/internal/ingest"
)

const (
	maxUploadBytes  = 512 << 20 // 512 MB
	maxUploadMemory = 32 << 20
	// uploadField carries files whose relative paths are sent as parallel
	// "path" values. Any other file field is named after the file's path.
	uploadField = "file"
	pathField   = "path"
)

// parseUploads reads a multipart selection into ingestion uploads.
// Browsers strip directories from part file names, so the relative path
// travels in the field name or in a parallel path value.
func parseUploads(w http.ResponseWriter, r *http.Request) ([]ingest.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	form := r.MultipartForm

	names := make([]string, 0, len(form.File))
	for name := range form.File {
		names = append(names, name)
	}
	sort.Strings(names)

	var uploads []ingest.Upload
	for _, name := range names {
		headers := form.File[name]
		if name == uploadField {
			paths := form.Value[pathField]
			for i, h := range headers {
				p := h.Filename
				if i < len(paths) && paths[i] != "" {
					p = paths[i]
				}
				uploads = append(uploads, ingest.Upload{Path: p, Header: h})
			}
			continue
		}
		for _, h := range headers {
			uploads = append(uploads, ingest.Upload{Path: name, Header: h})
		}
	}
	return uploads, nil
}
