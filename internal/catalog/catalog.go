package catalog

// Catalog defines the export-history operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Catalog interface {
	RecordExport(e ExportRow, entries []EntryRow) error
	GetExport(id string) (*ExportRow, error)
	ListExports(sessionID string, limit, offset int) ([]ExportRow, int, error)
	DeleteExport(id string) error
	StoredPaths() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
