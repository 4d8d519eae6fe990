//go:build !sqlite_fts5

package catalog

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses a LIKE fallback on export_entries.
	return nil
}

func ftsInsert(_ *sql.Tx, _ string, _ EntryRow) error {
	// Entries are already stored in export_entries; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT x.export_id, e.project_name, x.path, x.classification, substr(x.summary, 1, 200)
		FROM export_entries x
		JOIN exports e ON e.id = x.export_id
		WHERE x.path LIKE ? OR x.classification LIKE ? OR x.tags LIKE ? OR x.summary LIKE ?
		ORDER BY e.generated_at DESC, x.path
		LIMIT ?
	`, like, like, like, like, limit)
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
