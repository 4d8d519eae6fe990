// Package classify decides whether a file is treated as text or as a
// displayable image, from its name and declared MIME type.
package classify

import (
	"path"
	"strings"
)

var textMimePrefixes = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/javascript",
	"application/typescript",
	"application/x-sh",
	"application/x-yaml",
	"application/yaml",
	"application/xhtml+xml",
}

var textExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".json": {}, ".js": {}, ".ts": {}, ".html": {},
	".css": {}, ".py": {}, ".sh": {}, ".xml": {}, ".yaml": {}, ".yml": {},
	".java": {}, ".c": {}, ".cpp": {}, ".h": {}, ".cs": {}, ".rb": {},
	".php": {}, ".go": {}, ".rs": {}, ".swift": {}, ".kt": {}, ".kts": {},
	".gitignore": {}, ".env": {},
}

var imageMimeTypes = map[string]struct{}{
	"image/png":     {},
	"image/jpeg":    {},
	"image/gif":     {},
	"image/webp":    {},
	"image/svg+xml": {},
	"image/x-icon":  {},
}

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {},
}

// mediaMimePrefixes mark declared types that the extension allowlist never
// overrides, so a transport stream named clip.ts stays binary.
var mediaMimePrefixes = []string{"image/", "audio/", "video/"}

// IsTextLike reports whether the file's content should be previewed as text.
// A text MIME type decides at once. Otherwise the extension allowlist
// applies, unless the declared type is an image, audio or video type. Host
// MIME tables disagree on types such as application/x-php, so those fall
// through to the extension.
func IsTextLike(name, mimeHint string) bool {
	mt := strings.ToLower(mimeHint)
	for _, p := range textMimePrefixes {
		if strings.HasPrefix(mt, p) {
			return true
		}
	}
	for _, p := range mediaMimePrefixes {
		if strings.HasPrefix(mt, p) {
			return false
		}
	}
	_, ok := textExtensions[extension(name)]
	return ok
}

// IsImageLike reports whether the file is a displayable image.
func IsImageLike(name, mimeHint string) bool {
	if mimeHint != "" {
		_, ok := imageMimeTypes[strings.ToLower(mimeHint)]
		return ok
	}
	_, ok := imageExtensions[extension(name)]
	return ok
}

// extension returns the lowercased suffix starting at the last dot, so that
// dotfiles such as ".gitignore" resolve to themselves.
func extension(name string) string {
	base := path.Base(name)
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(base[i:])
}
