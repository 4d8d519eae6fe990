// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/satd/internal/analysis"
	"github.com/starford/satd/internal/api"
	"github.com/starford/satd/internal/catalog"
	"github.com/starford/satd/internal/ingest"
	"github.com/starford/satd/internal/manifest"
	"github.com/starford/satd/internal/mcpserver"
	"github.com/starford/satd/internal/session"
	"github.com/starford/satd/internal/sse"
	"github.com/starford/satd/internal/storage"
	"github.com/starford/satd/internal/watch"
)

// components are the long-lived parts shared by every command.
type components struct {
	db      *catalog.DB
	exports *storage.FS
	svc     *session.Service
}

func (c *components) close() {
	c.svc.Close()
	c.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (app *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// build opens the catalog, reconciles it with the export directory and
// creates the session service. events may be nil. served enables directory
// watching and the allowed ingest roots for the HTTP and MCP surfaces.
func (app *application) build(ctx context.Context, logger *slog.Logger, events session.Publisher, served bool) (*components, error) {
	cfg := app.config

	db, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	var exports *storage.FS
	if cfg.Export.Dir != "" {
		if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
			db.Close()
			return nil, fmt.Errorf("create export dir: %w", err)
		}
		if exports, err = storage.NewFS(cfg.Export.Dir); err != nil {
			db.Close()
			return nil, fmt.Errorf("init export storage: %w", err)
		}
		if err := catalog.Sync(db, exports, logger); err != nil {
			logger.Warn("initial catalog sync failed", slog.String("error", err.Error()))
		}
	}

	analyzer, err := newAnalyzer(ctx, cfg.Analysis, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	opts := session.Options{
		Ingest: ingest.Options{
			TextPreviewLimit: cfg.Ingest.TextPreviewLimit,
			AIPayloadLimit:   cfg.Ingest.AIPayloadLimit,
			Workers:          cfg.Ingest.Workers,
			Exclude:          cfg.Ingest.Exclude,
			DecodeQR:         cfg.Ingest.DecodeQR,
		},
		Analyzer:        analyzer,
		PersistFailures: cfg.Analysis.PersistFailures,
		Settings:        manifestSettings(cfg.Settings),
		Catalog:         db,
		Events:          events,
	}
	// A nil *storage.FS must not become a non-nil interface.
	if exports != nil {
		opts.Exports = exports
	}
	if served {
		opts.WatchDebounce = cfg.Ingest.WatchDebounce
		opts.AllowedRoots = cfg.Ingest.AllowedRoots
	}

	svc, err := session.NewService(opts, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init sessions: %w", err)
	}
	return &components{db: db, exports: exports, svc: svc}, nil
}

func newAnalyzer(ctx context.Context, cfg AnalysisConfig, logger *slog.Logger) (analysis.Analyzer, error) {
	if !cfg.Enabled() {
		if cfg.Provider == ProviderGemini {
			logger.Warn("analysis provider has no api key, AI analysis disabled")
		}
		return analysis.Disabled{}, nil
	}
	g, err := analysis.NewGemini(ctx, analysis.GeminiConfig{
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		MaxTextChars: cfg.MaxTextChars,
		Timeout:      cfg.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init analyzer: %w", err)
	}
	return g, nil
}

func manifestSettings(c SettingsConfig) manifest.Settings {
	s := manifest.Settings{InformationIntegrationDegree: c.InformationIntegrationDegree}
	if c.LocalLLMEnabled {
		enabled := true
		s.LocalLLMEnabled = &enabled
		s.LocalLLMEndpoint = c.LocalLLMEndpoint
		s.LocalLLMModelType = c.LocalLLMModelType
	}
	return s
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("export_dir", cfg.Export.Dir),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("analysis_provider", cfg.Analysis.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.build(ctx, logger, broker, true)
	if err != nil {
		return err
	}
	defer c.close()

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, _, err := c.db.ListExports("", 1, 0); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"catalog unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the catalog in step with archives added or removed by hand.
	if c.exports != nil {
		g.Go(func() error {
			err := watch.Watch(gCtx, c.exports.Root(), watch.Options{
				Debounce: cfg.Ingest.WatchDebounce,
				Ignore: func(rel string) bool {
					return strings.HasPrefix(filepath.Base(rel), storage.TempPrefix)
				},
			}, logger, func(paths []string) {
				if err := catalog.Sync(c.db, c.exports, logger); err != nil {
					logger.Warn("catalog sync failed", slog.String("error", err.Error()))
				}
			})
			if err != nil {
				logger.Warn("export watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown ends the errgroup once the server has been shut down, which
// also stops the export watcher.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	c, err := app.build(ctx, logger, nil, true)
	if err != nil {
		return err
	}
	defer c.close()

	srv, err := mcpserver.New(ctx, c.svc, app.version, logger)
	if err != nil {
		return err
	}
	logger.Info("MCP server starting on stdio", slog.String("session", srv.DefaultSession()))
	return srv.ServeStdio()
}

// ExportResult describes an archive written by RunExport.
type ExportResult struct {
	ID       string
	Name     string
	Path     string
	Checksum string
	Files    int
	Dirs     int
	Excluded int
}

// RunExport ingests dir once and writes its archive. With out empty the
// archive is only kept in the export directory; otherwise it is also
// written to out, which may name a directory.
func RunExport(ctx context.Context, dir, out string, opts ...Option) (*ExportResult, error) {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return nil, err
	}
	logger := app.logger()

	c, err := app.build(ctx, logger, nil, false)
	if err != nil {
		return nil, err
	}
	defer c.close()
	if c.exports == nil && out == "" {
		return nil, fmt.Errorf("no export dir configured and no output path given")
	}

	info, err := c.svc.Create(ctx, manifest.Project{})
	if err != nil {
		return nil, err
	}
	res, err := c.svc.IngestDir(ctx, info.ID, dir)
	if err != nil {
		return nil, err
	}
	// Ingestion starts a fresh project, so the narrative goes in afterwards.
	if app.project != (manifest.Project{}) {
		project := app.project
		if strings.TrimSpace(project.Name) == "" {
			project.Name = res.RootName
		}
		if _, err := c.svc.UpdateDetails(ctx, info.ID, project); err != nil {
			return nil, err
		}
	}
	exp, err := c.svc.Export(ctx, info.ID)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{
		ID:       exp.ID,
		Name:     exp.Name,
		Checksum: exp.Checksum,
		Files:    res.Files,
		Dirs:     res.Dirs,
		Excluded: res.Excluded,
	}
	if c.exports != nil && exp.StoredPath != "" {
		result.Path = filepath.Join(c.exports.Root(), filepath.FromSlash(exp.StoredPath))
	}

	if out != "" {
		if st, err := os.Stat(out); err == nil && st.IsDir() {
			out = filepath.Join(out, exp.Name)
		}
		if err := os.WriteFile(out, exp.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write archive: %w", err)
		}
		result.Path = out
	}
	return result, nil
}
