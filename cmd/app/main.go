package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/skillvault/internal"
	"github.com/starford/skillvault/internal/export"
	"github.com/starford/skillvault/internal/mcpserver"
	"github.com/starford/skillvault/internal/storage"
	pkgconfig "github.com/starford/skillvault/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadLayered(cfg, cmd.String("config"), cmd.String("config-local")); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func openApp(ctx context.Context, cmd *cli.Command, opts ...internal.Option) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.New(ctx, append([]internal.Option{internal.WithConfig(cfg)}, opts...)...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(ctx, cmd, internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer app.Close()

	user := cmd.String("user")
	if user == "" {
		user = app.Config.MCP.UserID
	}
	return mcpserver.New(app.Skills, user).ServeStdio()
}

func seed(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	synced, seeded, err := app.Seed(ctx, cmd.String("user"))
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"sync": synced, "seed": seeded})
}

func relink(ctx context.Context, cmd *cli.Command) error {
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	rep, err := app.Skills.RelinkAll(ctx, cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	return printJSON(rep)
}

func exportSkill(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: export <skill-id> <dir>")
	}
	id, dir := cmd.Args().Get(0), cmd.Args().Get(1)

	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	dst, err := storage.OpenFolder(dir, true)
	if err != nil {
		return err
	}

	var viewer *string
	if u := cmd.String("user"); u != "" {
		viewer = &u
	}
	res, err := export.Skill(ctx, app.Skills, viewer, id, dst, export.Options{
		Force:    cmd.Bool("force"),
		Rendered: cmd.Bool("rendered"),
	}, app.Logger)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "user",
		Usage: "Acting user id",
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "skillvault",
		Usage:  "Skill documents with typed mentions and a derived link graph",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "config-local",
				Usage:   "Optional overlay applied on top of --config when present",
				Value:   "config/config.local.yaml",
				Sources: cli.EnvVars("APP_CONFIG_LOCAL_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Flags:  []cli.Flag{userFlag()},
				Action: runMCP,
			},
			{
				Name:   "seed",
				Usage:  "Refresh seeded skills from templates and seed a user",
				Flags:  []cli.Flag{userFlag()},
				Action: seed,
			},
			{
				Name:  "relink",
				Usage: "Rebuild mention links of every skill from its markdown",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "Compute links without writing"},
				},
				Action: relink,
			},
			{
				Name:      "export",
				Usage:     "Write a skill as a SKILL.md folder",
				ArgsUsage: "<skill-id> <dir>",
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{Name: "force", Usage: "Write into a non-empty directory"},
					&cli.BoolFlag{Name: "rendered", Usage: "Render mentions as plain text in SKILL.md"},
				},
				Action: exportSkill,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
