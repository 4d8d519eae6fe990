package catalog

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/satd/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "satd-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEntries() []EntryRow {
	return []EntryRow{
		{Path: "proj", Type: "directory", Classification: "Directory"},
		{Path: "proj/a.txt", Type: "file", Classification: "Text Document", Tags: []string{"greeting"}, Summary: "Says hello to uniqueword readers."},
		{Path: "proj/b.png", Type: "file", Classification: "Image"},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM exports`).Scan(&count); err != nil {
		t.Fatalf("exports table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM export_entries`).Scan(&count); err != nil {
		t.Fatalf("export_entries table missing: %v", err)
	}
}

func TestRecordAndGetExport(t *testing.T) {
	db := testDB(t)
	row := ExportRow{
		ID:          "e1",
		SessionID:   "s1",
		ProjectName: "proj",
		ArchiveName: "proj.sAtd.zip",
		Checksum:    "abc123",
		SizeBytes:   512,
		GeneratedAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}
	if err := db.RecordExport(row, sampleEntries()); err != nil {
		t.Fatalf("RecordExport: %v", err)
	}

	got, err := db.GetExport("e1")
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if got.Checksum != "abc123" || got.EntryCount != 3 || got.ProjectName != "proj" {
		t.Errorf("unexpected row: %+v", got)
	}
	if !got.GeneratedAt.Equal(row.GeneratedAt) {
		t.Errorf("generated_at = %v", got.GeneratedAt)
	}
}

func TestGetExport_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetExport("missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordReplacesEntries(t *testing.T) {
	db := testDB(t)
	_ = db.RecordExport(ExportRow{ID: "e1", ArchiveName: "x.sAtd.zip"}, sampleEntries())
	_ = db.RecordExport(ExportRow{ID: "e1", ArchiveName: "x.sAtd.zip"}, sampleEntries()[:1])

	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM export_entries WHERE export_id = 'e1'`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("entries = %d, want 1", count)
	}
}

func TestListExports(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = db.RecordExport(ExportRow{ID: "a", SessionID: "s1", ArchiveName: "a", GeneratedAt: base}, nil)
	_ = db.RecordExport(ExportRow{ID: "b", SessionID: "s1", ArchiveName: "b", GeneratedAt: base.Add(time.Hour)}, nil)
	_ = db.RecordExport(ExportRow{ID: "c", SessionID: "s2", ArchiveName: "c", GeneratedAt: base.Add(2 * time.Hour)}, nil)

	all, total, err := db.ListExports("", 10, 0)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if total != 3 || len(all) != 3 || all[0].ID != "c" {
		t.Errorf("all = %+v total=%d", all, total)
	}

	s1, total, err := db.ListExports("s1", 1, 0)
	if err != nil {
		t.Fatalf("ListExports s1: %v", err)
	}
	if total != 2 || len(s1) != 1 || s1[0].ID != "b" {
		t.Errorf("s1 = %+v total=%d", s1, total)
	}
}

func TestDeleteExport(t *testing.T) {
	db := testDB(t)
	_ = db.RecordExport(ExportRow{ID: "del", ArchiveName: "d"}, sampleEntries())

	if err := db.DeleteExport("del"); err != nil {
		t.Fatalf("DeleteExport: %v", err)
	}
	if _, err := db.GetExport("del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("export still present: %v", err)
	}
	results, _ := db.Search("uniqueword", 10)
	if len(results) != 0 {
		t.Errorf("entries of deleted export still searchable: %+v", results)
	}
	if err := db.DeleteExport("del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.RecordExport(ExportRow{ID: "s", ProjectName: "proj", ArchiveName: "s"}, sampleEntries())

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "proj/a.txt" || results[0].ProjectName != "proj" {
		t.Errorf("search results = %+v, want 1 hit for proj/a.txt", results)
	}
}
