package storage

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("sAtdVersion: '2.0'\n")
	if err := s.Write("sAtddef.yaml", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("sAtddef.yaml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("a/b/c.txt", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rc, err := s.Open("a/b/c.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("del.zip", []byte("bye"))
	if err := s.Delete("del.zip"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.zip"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestWalk(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a.html", []byte("a"))
	_ = s.Write("sub/b.png", []byte("bb"))
	_ = s.Write("sub/deeper/c.unknownext", []byte("ccc"))
	if err := os.Symlink(filepath.Join(s.Root(), "a.html"), filepath.Join(s.Root(), "link.html")); err != nil {
		t.Logf("symlink unsupported: %v", err)
	}

	items, err := s.Walk("")
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(items), items)
	}
	if items[1].Path != "sub/b.png" || items[1].Size != 2 || items[1].MimeType != "image/png" {
		t.Errorf("unexpected meta: %+v", items[1])
	}
	if items[0].MimeType != "text/html" {
		t.Errorf("a.html mime = %q, want parameters stripped", items[0].MimeType)
	}
	if items[2].MimeType != "" {
		t.Errorf("unknown extension mime = %q", items[2].MimeType)
	}

	sub, err := s.Walk("sub")
	if err != nil {
		t.Fatalf("Walk sub: %v", err)
	}
	if len(sub) != 2 {
		t.Errorf("sub len = %d, want 2", len(sub))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.txt",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if _, err := s.Walk(p); err == nil {
			t.Errorf("expected error for walk of %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("demo.sAtd.zip", []byte("original"))

	if err := s.Write("demo.sAtd.zip", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("demo.sAtd.zip")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, TempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "satd-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
