package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/satd/internal"
	"github.com/starford/satd/internal/manifest"
	pkgconfig "github.com/starford/satd/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func exportDir(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("usage: %s export [flags] <dir>", cmd.Root().Name)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	project := manifest.Project{
		Name:     cmd.String("name"),
		Overview: cmd.String("overview"),
	}
	res, err := internal.RunExport(ctx, dir, cmd.String("out"),
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithProject(project),
	)
	if err != nil {
		return fmt.Errorf("export error: %w", err)
	}
	fmt.Fprintf(os.Stdout, "%s\t%s\t%d files, %d dirs, %d excluded\t%s\n",
		res.ID, res.Path, res.Files, res.Dirs, res.Excluded, res.Checksum)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "satd",
		Usage:   "Reconstruct project folders into annotated trees and export them as .sAtd packages",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "export",
				Usage:     "Ingest a directory once and write its .sAtd.zip archive",
				ArgsUsage: "<dir>",
				Action:    exportDir,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Archive file or directory to write (defaults to the export dir)",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Project name (defaults to the folder name)",
					},
					&cli.StringFlag{
						Name:  "overview",
						Usage: "Project overview",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
