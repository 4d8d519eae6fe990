package apperr

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrEmptyIngestion      = errors.New("no files selected")
	ErrStaleGeneration     = errors.New("stale generation")
	ErrNothingToExport     = errors.New("nothing to export")
	ErrAnalyzerUnavailable = errors.New("AI analysis unavailable")
	ErrNoContent           = errors.New("no content available for analysis")
)

// IngestionError reports that a selected folder could not be enumerated or
// produced no files.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Source == "" {
		return "ingestion failed: " + e.Err.Error()
	}
	return "ingestion of " + e.Source + " failed: " + e.Err.Error()
}

func (e *IngestionError) Unwrap() error { return e.Err }

// AnalysisError reports a failed or unconfigured AI analysis. Message is the
// diagnostic text shown to the user.
type AnalysisError struct {
	Path    string
	Message string
	Err     error
}

func (e *AnalysisError) Error() string { return e.Message }

func (e *AnalysisError) Unwrap() error { return e.Err }

// SerializationError reports a value the manifest emitter cannot represent.
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	return "serialize " + e.Field + ": " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error { return e.Err }

// PackagingError reports a failure while building the export archive.
type PackagingError struct {
	Err error
}

func (e *PackagingError) Error() string { return "packaging failed: " + e.Err.Error() }

func (e *PackagingError) Unwrap() error { return e.Err }
