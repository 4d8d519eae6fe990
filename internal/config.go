package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/satd/internal/content"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Analysis providers.
const (
	ProviderGemini   = "gemini"
	ProviderDisabled = "disabled"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Ingest   IngestConfig      `yaml:"ingest"`
	Analysis AnalysisConfig    `yaml:"analysis"`
	Export   ExportConfig      `yaml:"export"`
	Catalog  CatalogConfig     `yaml:"catalog"`
	Auth     AuthConfig        `yaml:"auth"`
	Settings SettingsConfig    `yaml:"settings"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Ingest, &c.Analysis, &c.Export, &c.Catalog, &c.Auth, &c.Settings,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// IngestConfig bounds what is read from each selected file.
type IngestConfig struct {
	TextPreviewLimit int64    `yaml:"text_preview_limit"`
	AIPayloadLimit   int64    `yaml:"ai_payload_limit"`
	Workers          int      `yaml:"workers"`
	Exclude          []string `yaml:"exclude"`
	DecodeQR         bool     `yaml:"decode_qr"`
	// WatchDebounce is the quiet period before a watched directory is
	// ingested again. Zero disables watching.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
	// AllowedRoots limits the directories the API and MCP server may
	// ingest. Empty allows any directory the process can read.
	AllowedRoots []string `yaml:"allowed_roots"`
}

// Validate validates the ingest configuration.
func (c *IngestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TextPreviewLimit, validation.Required, validation.Min(int64(1)), validation.Max(content.TextPreviewLimit)),
		validation.Field(&c.AIPayloadLimit, validation.Required, validation.Min(int64(1)), validation.Max(content.AIPayloadLimit)),
		validation.Field(&c.AllowedRoots, validation.Each(validation.Required)),
		validation.Field(&c.Workers, validation.Min(0), validation.Max(256)),
		validation.Field(&c.WatchDebounce, validation.Min(time.Duration(0))),
	)
}

// AnalysisConfig selects and tunes the AI analyzer.
type AnalysisConfig struct {
	Provider     string        `yaml:"provider"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	MaxTextChars int           `yaml:"max_text_chars"`
	Timeout      time.Duration `yaml:"timeout"`
	// PersistFailures stores the diagnostic text of a failed analysis as
	// the node's aiSummary.
	PersistFailures bool `yaml:"persist_failures"`
}

// Validate validates the analysis configuration.
func (c *AnalysisConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = ProviderDisabled
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(ProviderGemini, ProviderDisabled)),
		validation.Field(&c.MaxTextChars, validation.Min(0)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Enabled reports whether a usable provider is configured. A provider
// without an API key counts as disabled.
func (c *AnalysisConfig) Enabled() bool {
	return c.Provider == ProviderGemini && c.APIKey != ""
}

// ExportConfig controls where finished archives are kept. An empty Dir
// keeps exports in memory only.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return nil
}

// CatalogConfig holds the SQLite export catalog configuration.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SettingsConfig is echoed into the manifest settings block.
type SettingsConfig struct {
	InformationIntegrationDegree int    `yaml:"information_integration_degree"`
	LocalLLMEnabled              bool   `yaml:"local_llm_enabled"`
	LocalLLMEndpoint             string `yaml:"local_llm_endpoint"`
	LocalLLMModelType            string `yaml:"local_llm_model_type"`
}

// Validate validates the settings block.
func (c *SettingsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.InformationIntegrationDegree, validation.Min(0), validation.Max(2)),
		validation.Field(&c.LocalLLMModelType, validation.When(c.LocalLLMEnabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Ingest: IngestConfig{
			TextPreviewLimit: content.TextPreviewLimit,
			AIPayloadLimit:   content.AIPayloadLimit,
			Workers:          8,
			Exclude:          []string{"**/.git/**", "**/node_modules/**", ".DS_Store"},
			DecodeQR:         true,
			WatchDebounce:    500 * time.Millisecond,
		},
		Analysis: AnalysisConfig{
			Provider:     ProviderDisabled,
			MaxTextChars: 100_000,
			Timeout:      60 * time.Second,
		},
		Export: ExportConfig{
			Dir: "./exports",
		},
		Catalog: CatalogConfig{
			Path: "./satd.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Settings: SettingsConfig{
			InformationIntegrationDegree: 1,
		},
	}
}
