package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/satd/internal/apperr"
)

// ExportRow represents a row in the exports table.
type ExportRow struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId,omitempty"`
	ProjectName string    `json:"projectName"`
	ArchiveName string    `json:"archiveName"`
	StoredPath  string    `json:"storedPath,omitempty"`
	Checksum    string    `json:"checksum"`
	EntryCount  int       `json:"entryCount"`
	SizeBytes   int64     `json:"size"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// EntryRow is one manifest entry of an export.
type EntryRow struct {
	Path           string
	Type           string
	Classification string
	Tags           []string
	Summary        string
}

// SearchResult represents one search hit.
type SearchResult struct {
	ExportID       string `json:"exportId"`
	ProjectName    string `json:"projectName"`
	Path           string `json:"path"`
	Classification string `json:"classification"`
	Snippet        string `json:"snippet"`
}

// RecordExport inserts an export, its entries and their FTS rows within a
// transaction. Recording the same id again replaces the previous rows.
func (db *DB) RecordExport(e ExportRow, entries []EntryRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if e.GeneratedAt.IsZero() {
		e.GeneratedAt = time.Now().UTC()
	}
	_, err = tx.Exec(`
		INSERT INTO exports (id, session_id, project_name, archive_name, stored_path, checksum, entry_count, size_bytes, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id   = excluded.session_id,
			project_name = excluded.project_name,
			archive_name = excluded.archive_name,
			stored_path  = excluded.stored_path,
			checksum     = excluded.checksum,
			entry_count  = excluded.entry_count,
			size_bytes   = excluded.size_bytes,
			generated_at = excluded.generated_at
	`, e.ID, e.SessionID, e.ProjectName, e.ArchiveName, e.StoredPath, e.Checksum, len(entries), e.SizeBytes, e.GeneratedAt)
	if err != nil {
		return fmt.Errorf("catalog: upsert export: %w", err)
	}

	// Replace entries: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM export_entries WHERE export_id = ?`, e.ID)
	ftsDelete(tx, e.ID)
	if len(entries) > 0 {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO export_entries (export_id, path, type, classification, tags, summary) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("catalog: prepare entry insert: %w", err)
		}
		defer stmt.Close()
		for _, en := range entries {
			tags := en.Tags
			if tags == nil {
				tags = []string{}
			}
			tagsJSON, _ := json.Marshal(tags)
			if _, err := stmt.Exec(e.ID, en.Path, en.Type, en.Classification, string(tagsJSON), en.Summary); err != nil {
				return fmt.Errorf("catalog: insert entry: %w", err)
			}
			// FTS insert (no-op when FTS5 tag is absent).
			if err := ftsInsert(tx, e.ID, en); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// GetExport returns a single export.
func (db *DB) GetExport(id string) (*ExportRow, error) {
	row := db.conn.QueryRow(`
		SELECT id, session_id, project_name, archive_name, stored_path, checksum, entry_count, size_bytes, generated_at
		FROM exports WHERE id = ?`, id)
	e, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: export %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get export: %w", err)
	}
	return e, nil
}

// ListExports returns exports newest first, optionally for a single
// session, together with the total count.
func (db *DB) ListExports(sessionID string, limit, offset int) ([]ExportRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM exports WHERE ? = '' OR session_id = ?`, sessionID, sessionID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count exports: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, session_id, project_name, archive_name, stored_path, checksum, entry_count, size_bytes, generated_at
		FROM exports
		WHERE ? = '' OR session_id = ?
		ORDER BY generated_at DESC, id
		LIMIT ? OFFSET ?`, sessionID, sessionID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list exports: %w", err)
	}
	defer rows.Close()

	out := []ExportRow{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

// DeleteExport removes an export and its entries.
func (db *DB) DeleteExport(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM export_entries WHERE export_id = ?`, id)
	res, err := tx.Exec(`DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete export: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("catalog: export %s: %w", id, apperr.ErrNotFound)
	}
	return tx.Commit()
}

// StoredPaths maps the stored archive path of every export written to disk
// to its checksum.
func (db *DB) StoredPaths() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT stored_path, checksum FROM exports WHERE stored_path != ''`)
	if err != nil {
		return nil, fmt.Errorf("catalog: stored paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// exportIDByStoredPath returns the id of the export stored at p.
func (db *DB) exportIDByStoredPath(p string) (string, error) {
	var id string
	err := db.conn.QueryRow(`SELECT id FROM exports WHERE stored_path = ?`, p).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExport(s scanner) (*ExportRow, error) {
	var e ExportRow
	if err := s.Scan(&e.ID, &e.SessionID, &e.ProjectName, &e.ArchiveName, &e.StoredPath,
		&e.Checksum, &e.EntryCount, &e.SizeBytes, &e.GeneratedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
