//go:build sqlite_fts5

package catalog

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			export_id UNINDEXED,
			path,
			classification,
			tags,
			summary,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, exportID string, en EntryRow) error {
	_, err := tx.Exec(`INSERT INTO entries_fts (export_id, path, classification, tags, summary) VALUES (?, ?, ?, ?, ?)`,
		exportID, en.Path, en.Classification, strings.Join(en.Tags, " "), en.Summary)
	if err != nil {
		return fmt.Errorf("catalog: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, exportID string) {
	_, _ = tx.Exec(`DELETE FROM entries_fts WHERE export_id = ?`, exportID)
}

// Search performs an FTS5 full-text search over exported entries.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.export_id,
		       e.project_name,
		       f.path,
		       f.classification,
		       snippet(entries_fts, 4, '<b>', '</b>', '...', 32)
		FROM entries_fts f
		JOIN exports e ON e.id = f.export_id
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, matchQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ExportID, &r.ProjectName, &r.Path, &r.Classification, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// matchQuery quotes every term so paths like "rules.md" are not read as
// FTS5 query syntax. Terms are ANDed.
func matchQuery(q string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}
