// Package analysis asks a generative model to summarise a single file.
package analysis

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/starford/satd/internal/apperr"
)

// FailurePrefix starts the diagnostic text of every failed analysis.
const FailurePrefix = "Error analyzing file with AI: "

// UnavailableMessage is reported when no analyzer is configured.
const UnavailableMessage = "API Key not configured. AI analysis unavailable."

// TruncationMarker is appended to text cut at the character limit.
const TruncationMarker = "... (truncated)"

// DefaultMaxTextChars bounds the text sent for analysis.
const DefaultMaxTextChars = 100_000

// Request is one file to analyse. Payload is decoded text when IsText is
// set and base64 bytes otherwise.
type Request struct {
	Path     string
	FileName string
	MimeType string
	Payload  string
	IsText   bool
}

// Analyzer produces a short summary of a file. Errors are always
// *apperr.AnalysisError carrying user-facing text.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
	// Model names the backing model for the manifest settings block.
	Model() string
	Available() bool
}

// Truncate cuts s to at most limit characters and marks the cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}

// TextPrompt asks for a summary of file content.
func TextPrompt(fileName, text string) string {
	return fmt.Sprintf("Analyze the following file content from %q. Provide a concise summary (1-2 sentences) "+
		"and identify key aspects or purpose. If it's a configuration file (e.g. JSON, YAML), summarize its settings. "+
		"If it's code, describe its functionality. If it's a Markdown file, summarize its content.\n\n"+
		"File Content:\n```\n%s\n```", fileName, text)
}

// ImagePrompt asks for a description of an attached image.
func ImagePrompt(fileName string) string {
	return fmt.Sprintf("Describe the content of the image file named %q. If it's a QR code, state that and attempt "+
		"to decode its content if visually apparent. If it's a diagram, explain what it represents. "+
		"If it's a user interface screenshot, describe the UI.", fileName)
}

// Failure wraps err as an AnalysisError with the standard diagnostic text.
func Failure(path string, err error) error {
	return &apperr.AnalysisError{Path: path, Message: FailurePrefix + err.Error(), Err: err}
}

// Disabled is the analyzer used when no provider is configured.
type Disabled struct{}

func (Disabled) Analyze(_ context.Context, req Request) (string, error) {
	return "", &apperr.AnalysisError{Path: req.Path, Message: UnavailableMessage, Err: apperr.ErrAnalyzerUnavailable}
}

func (Disabled) Model() string   { return "" }
func (Disabled) Available() bool { return false }
