package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/starford/satd/internal/storage"
)

// File is one selected file: a relative path that includes the project's
// root folder, plus the byte source the content loader reads.
type File interface {
	Path() string
	Name() string
	Size() int64
	MimeType() string
	Open() (io.ReadCloser, error)
}

// Source enumerates the files of one selection.
type Source interface {
	// Name describes the selection for logs and errors.
	Name() string
	Files(ctx context.Context) ([]File, error)
}

// NormalizeMime strips parameters and drops the generic binary type, which
// carries no more information than an absent hint.
func NormalizeMime(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		t = mt
	}
	t = strings.ToLower(t)
	if t == "application/octet-stream" {
		return ""
	}
	return t
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// DirSource reads a local directory through storage. Every path is
// prefixed with the directory's own name so the tree has a single root.
type DirSource struct {
	fs   *storage.FS
	root string
}

// NewDirSource creates a source over the directory fs is rooted at.
func NewDirSource(fs *storage.FS) *DirSource {
	return &DirSource{fs: fs, root: fs.Name()}
}

// Name returns the absolute directory path.
func (d *DirSource) Name() string { return d.fs.Root() }

// Files walks the directory.
func (d *DirSource) Files(ctx context.Context) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metas, err := d.fs.Walk("")
	if err != nil {
		return nil, err
	}
	out := make([]File, 0, len(metas))
	for _, m := range metas {
		out = append(out, &dirFile{fs: d.fs, meta: m, path: d.root + "/" + m.Path})
	}
	return out, nil
}

type dirFile struct {
	fs   *storage.FS
	meta storage.FileMeta
	path string

	sniffOnce sync.Once
	mime      string
}

func (f *dirFile) Path() string { return f.path }
func (f *dirFile) Name() string { return baseName(f.path) }
func (f *dirFile) Size() int64  { return f.meta.Size }

func (f *dirFile) Open() (io.ReadCloser, error) {
	return f.fs.Open(f.meta.Path)
}

// MimeType uses the extension mapping and falls back to sniffing the first
// 512 bytes.
func (f *dirFile) MimeType() string {
	f.sniffOnce.Do(func() {
		f.mime = NormalizeMime(f.meta.MimeType)
		if f.mime != "" || f.meta.Size == 0 {
			return
		}
		f.mime = f.sniff()
	})
	return f.mime
}

func (f *dirFile) sniff() string {
	rc, err := f.fs.Open(f.meta.Path)
	if err != nil {
		return ""
	}
	defer rc.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(rc, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return ""
	}
	return NormalizeMime(http.DetectContentType(buf[:n]))
}

// Upload is one uploaded file.
type Upload struct {
	Path   string
	Header *multipart.FileHeader
}

// UploadSource serves files received in a multipart request.
type UploadSource struct {
	files []File
}

// NewUploadSource wraps uploads. Their paths must already be relative and
// include the root folder.
func NewUploadSource(uploads []Upload) *UploadSource {
	files := make([]File, 0, len(uploads))
	for _, u := range uploads {
		p := u.Path
		if p == "" {
			p = u.Header.Filename
		}
		files = append(files, &uploadFile{path: p, hdr: u.Header})
	}
	return &UploadSource{files: files}
}

// Name describes the upload.
func (u *UploadSource) Name() string {
	return fmt.Sprintf("upload of %d files", len(u.files))
}

// Files returns the uploads in request order.
func (u *UploadSource) Files(ctx context.Context) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return u.files, nil
}

type uploadFile struct {
	path string
	hdr  *multipart.FileHeader
}

func (f *uploadFile) Path() string { return f.path }
func (f *uploadFile) Name() string { return baseName(f.path) }
func (f *uploadFile) Size() int64  { return f.hdr.Size }

func (f *uploadFile) MimeType() string {
	return NormalizeMime(f.hdr.Header.Get("Content-Type"))
}

func (f *uploadFile) Open() (io.ReadCloser, error) {
	return f.hdr.Open()
}

// MemFile is an in-memory File.
type MemFile struct {
	FilePath string
	Mime     string
	Data     []byte
	// OpenErr, when set, is returned by Open.
	OpenErr error
}

func (m *MemFile) Path() string     { return m.FilePath }
func (m *MemFile) Name() string     { return baseName(m.FilePath) }
func (m *MemFile) Size() int64      { return int64(len(m.Data)) }
func (m *MemFile) MimeType() string { return m.Mime }

func (m *MemFile) Open() (io.ReadCloser, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return io.NopCloser(strings.NewReader(string(m.Data))), nil
}

// MemSource is a fixed list of files, used by the MCP surface and tests.
type MemSource struct {
	Label string
	List  []File
}

func (m *MemSource) Name() string { return m.Label }

func (m *MemSource) Files(ctx context.Context) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.List, nil
}
