package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/starford/satd/internal/apperr"
)

type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	reply    string
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "  " + f.reply}, {Text: " more.\n"}}},
		}},
	}, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGemini_TextRequest(t *testing.T) {
	fg := &fakeGenerator{reply: "A greeting."}
	g := newGemini(fg, GeminiConfig{MaxTextChars: 5}, quiet())

	got, err := g.Analyze(context.Background(), Request{FileName: "a.txt", Payload: "hello world", IsText: true})
	require.NoError(t, err)
	assert.Equal(t, "A greeting. more.", got)

	assert.Equal(t, DefaultModel, fg.model)
	require.Len(t, fg.contents, 1)
	require.Len(t, fg.contents[0].Parts, 1)
	prompt := fg.contents[0].Parts[0].Text
	assert.Contains(t, prompt, `"a.txt"`)
	assert.Contains(t, prompt, "hello"+TruncationMarker)
	assert.NotContains(t, prompt, "world")
	assert.Equal(t, float32(0.3), *fg.config.Temperature)
	assert.Equal(t, float32(32), *fg.config.TopK)
}

func TestGemini_ImageRequest(t *testing.T) {
	fg := &fakeGenerator{reply: "A logo."}
	g := newGemini(fg, GeminiConfig{Model: "custom-model"}, quiet())

	payload := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
	_, err := g.Analyze(context.Background(), Request{FileName: "logo.png", MimeType: "image/png", Payload: payload})
	require.NoError(t, err)

	assert.Equal(t, "custom-model", g.Model())
	parts := fg.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "image file named")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, parts[1].InlineData.Data)
}

func TestGemini_Failure(t *testing.T) {
	g := newGemini(&fakeGenerator{err: errors.New("quota exceeded")}, GeminiConfig{}, quiet())

	_, err := g.Analyze(context.Background(), Request{Path: "p/a.txt", FileName: "a.txt", Payload: "x", IsText: true})
	var ae *apperr.AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Error analyzing file with AI: quota exceeded", ae.Message)
	assert.Equal(t, "p/a.txt", ae.Path)

	_, err = g.Analyze(context.Background(), Request{FileName: "x.png", Payload: "%%%"})
	require.True(t, errors.As(err, &ae))
	assert.True(t, strings.HasPrefix(ae.Message, FailurePrefix))
}

func TestDisabled(t *testing.T) {
	var a Analyzer = Disabled{}
	assert.False(t, a.Available())
	_, err := a.Analyze(context.Background(), Request{})
	assert.True(t, errors.Is(err, apperr.ErrAnalyzerUnavailable))
	assert.Equal(t, UnavailableMessage, err.Error())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab"+TruncationMarker, Truncate("abc", 2))
	assert.Equal(t, "hé"+TruncationMarker, Truncate("héllo", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
