package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/bhc/internal"
	pkgconfig "github.com/starford/bhc/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// loadConfig reads the config file. Without a file the defaults apply, so
// an editor can start the server with no setup; an explicit --config must
// exist.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	load := pkgconfig.LoadOptional[internal.Config]
	if cmd.IsSet("config") {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func baseOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithRoots(cmd.StringSlice("root")...),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := baseOptions(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithStdio(cmd.Bool("stdio")))
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := baseOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func reconcile(ctx context.Context, cmd *cli.Command) error {
	opts, err := baseOptions(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithRoots(cmd.Args().Slice()...))
	return internal.ReconcileOnce(ctx, opts...)
}

func render(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("render expects exactly one HTML file")
	}
	opts, err := baseOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Render(ctx, cmd.Args().First(), opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "bhc",
		Usage:   "Keeps CSS rule metadata beside HTML documents and shows each document's stylesheets as one view",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringSliceFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Workspace root to open, may be repeated",
				Sources: cli.EnvVars("BHC_ROOTS"),
			},
			&cli.BoolFlag{
				Name:  "stdio",
				Usage: "Speak LSP on stdin/stdout when serving",
				Value: true,
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the language server with watchers and the optional inspection API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the workspace tools over MCP on stdio",
				Action: mcp,
			},
			{
				Name:      "reconcile",
				Usage:     "Run one reconciliation pass and print the reports",
				ArgsUsage: "[root...]",
				Action:    reconcile,
			},
			{
				Name:      "render",
				Usage:     "Print the stylesheet view of an HTML document",
				ArgsUsage: "<file.html>",
				Action:    render,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
