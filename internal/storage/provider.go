// Package storage defines the local project-directory abstraction used to
// read ingested folders and to write finished archives.
package storage

import (
	"io"
	"time"
)

// FileMeta describes one regular file found under the root.
type FileMeta struct {
	// Path is relative to the root and always "/"-separated.
	Path     string
	Size     int64
	ModTime  time.Time
	MimeType string
}

// Provider is the interface for rooted file operations.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Walk returns every regular file under dir (relative to root).
	Walk(dir string) ([]FileMeta, error)
	// Open opens the file at path (relative to root) for reading.
	Open(path string) (io.ReadCloser, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
}
