// Package content reads a single file into a bounded text preview and a
// bounded base64 payload. Failures never propagate; they degrade the
// affected field and are logged.
package content

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/starford/satd/internal/classify"
)

// Default size ceilings, in bytes.
const (
	TextPreviewLimit int64 = 50_000
	AIPayloadLimit   int64 = 4 * 1024 * 1024
)

// ReadErrorText replaces the text preview of a file that could not be read.
const ReadErrorText = "Error reading file content."

// Blob is the raw byte source of one selected file.
type Blob interface {
	Name() string
	Size() int64
	MimeType() string
	Open() (io.ReadCloser, error)
}

// Result holds the optional fields produced for one file. A nil field is
// absent.
type Result struct {
	TextPreview    *string
	EncodedPayload *string
}

// Loader applies the two independent size ceilings.
type Loader struct {
	textLimit    int64
	payloadLimit int64
	logger       *slog.Logger
}

// NewLoader creates a Loader. Non-positive limits fall back to the defaults.
func NewLoader(textLimit, payloadLimit int64, logger *slog.Logger) *Loader {
	if textLimit <= 0 {
		textLimit = TextPreviewLimit
	}
	if payloadLimit <= 0 {
		payloadLimit = AIPayloadLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{textLimit: textLimit, payloadLimit: payloadLimit, logger: logger}
}

// Load reads b once and derives whichever fields it qualifies for.
func (l *Loader) Load(ctx context.Context, b Blob) Result {
	var res Result

	isText := classify.IsTextLike(b.Name(), b.MimeType())
	isImage := classify.IsImageLike(b.Name(), b.MimeType())
	wantText := isText && b.Size() <= l.textLimit
	wantPayload := (isText || isImage) && b.Size() <= l.payloadLimit
	if !wantText && !wantPayload {
		return res
	}

	limit := l.textLimit
	if wantPayload && l.payloadLimit > limit {
		limit = l.payloadLimit
	}

	data, err := readBounded(ctx, b, limit)
	if err != nil {
		l.logger.Warn("content: read failed",
			slog.String("file", b.Name()),
			slog.String("error", err.Error()))
		if wantText {
			msg := ReadErrorText
			res.TextPreview = &msg
		}
		return res
	}

	// The declared size gates eligibility; the bytes actually read must also
	// fit, in case the file grew after it was enumerated.
	n := int64(len(data))
	if wantText && n <= l.textLimit {
		text, err := DecodeText(data)
		if err != nil {
			l.logger.Warn("content: text decode failed",
				slog.String("file", b.Name()),
				slog.String("error", err.Error()))
			text = ReadErrorText
		}
		res.TextPreview = &text
	}
	if wantPayload && n <= l.payloadLimit {
		enc := base64.StdEncoding.EncodeToString(data)
		res.EncodedPayload = &enc
	}
	return res
}

// DecodeText converts raw bytes to a UTF-8 string. A UTF-16 or UTF-8 byte
// order mark selects the source encoding; otherwise the bytes are read as
// UTF-8 with invalid sequences replaced by U+FFFD.
func DecodeText(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("content: decode: %w", err)
	}
	return string(out), nil
}

func readBounded(ctx context.Context, b Blob, limit int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := b.Open()
	if err != nil {
		return nil, fmt.Errorf("content: open: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("content: read: %w", err)
	}
	return data, nil
}
