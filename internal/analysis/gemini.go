package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when the configuration names none.
const DefaultModel = "gemini-2.5-flash"

// generator is the slice of *genai.Models the analyzer needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures a Gemini analyzer.
type GeminiConfig struct {
	APIKey       string
	Model        string
	MaxTextChars int
	Timeout      time.Duration
}

// Gemini analyses files with the Gemini API.
type Gemini struct {
	models       generator
	model        string
	maxTextChars int
	timeout      time.Duration
	logger       *slog.Logger
}

// NewGemini creates a client for the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("analysis: gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: gemini client: %w", err)
	}
	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(g generator, cfg GeminiConfig, logger *slog.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = DefaultMaxTextChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		models:       g,
		model:        cfg.Model,
		maxTextChars: cfg.MaxTextChars,
		timeout:      cfg.Timeout,
		logger:       logger,
	}
}

func (g *Gemini) Model() string   { return g.model }
func (g *Gemini) Available() bool { return true }

// Analyze sends the file and returns the trimmed response text.
func (g *Gemini) Analyze(ctx context.Context, req Request) (string, error) {
	parts, err := g.parts(req)
	if err != nil {
		return "", Failure(req.Path, err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0.3),
			TopP:        genai.Ptr[float32](0.9),
			TopK:        genai.Ptr[float32](32),
		})
	if err != nil {
		g.logger.Warn("analysis: gemini request failed",
			slog.String("file", req.Path),
			slog.String("error", err.Error()))
		return "", Failure(req.Path, err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", Failure(req.Path, errors.New("empty response"))
	}
	return text, nil
}

func (g *Gemini) parts(req Request) ([]*genai.Part, error) {
	if req.IsText {
		return []*genai.Part{
			genai.NewPartFromText(TextPrompt(req.FileName, Truncate(req.Payload, g.maxTextChars))),
		}, nil
	}
	data, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return []*genai.Part{
		genai.NewPartFromText(ImagePrompt(req.FileName)),
		genai.NewPartFromBytes(data, mimeType),
	}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
