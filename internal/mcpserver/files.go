package mcpserver

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/satd/internal/ingest"
)

const maxFileSize = 10 << 20 // 10 MB

// fileArg is one file of the ingest_files tool. Exactly one of Content and
// DataURI is set.
type fileArg struct {
	Path     string `json:"path"`
	Content  string `json:"content,omitempty"`
	DataURI  string `json:"dataUri,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// memSource converts the raw "files" argument into an in-memory source.
func memSource(raw any) (*ingest.MemSource, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid files argument: %w", err)
	}
	var args []fileArg
	if err := json.Unmarshal(b, &args); err != nil {
		return nil, fmt.Errorf("invalid files argument: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("files must not be empty")
	}

	src := &ingest.MemSource{Label: fmt.Sprintf("mcp upload of %d files", len(args))}
	for _, a := range args {
		if a.Path == "" {
			return nil, fmt.Errorf("every file needs a path")
		}
		f := &ingest.MemFile{FilePath: a.Path, Mime: a.MimeType}
		if a.DataURI != "" {
			data, mime, err := decodeDataURI(a.DataURI)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", a.Path, err)
			}
			f.Data = data
			if f.Mime == "" {
				f.Mime = mime
			}
		} else {
			f.Data = []byte(a.Content)
		}
		if len(f.Data) > maxFileSize {
			return nil, fmt.Errorf("%s: file too large: %d bytes (max %d)", a.Path, len(f.Data), maxFileSize)
		}
		f.Mime = ingest.NormalizeMime(f.Mime)
		src.List = append(src.List, f)
	}
	return src, nil
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing data: prefix")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	return data, mime, nil
}
