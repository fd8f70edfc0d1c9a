// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/agentauth/cmd/app/commands"
	"github.com/allisson/agentauth/internal/app"
	"github.com/allisson/agentauth/internal/config"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "agentauth",
		Usage:   "Access control core for agent platforms",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					defer func() { _ = container.Shutdown(ctx) }()

					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				},
			},
			{
				Name:  "seed-permissions",
				Usage: "Write the permission catalog to the database",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					defer func() { _ = container.Shutdown(ctx) }()

					permissionUseCase, err := container.PermissionUseCase()
					if err != nil {
						return err
					}

					return commands.RunSeedPermissions(
						ctx,
						permissionUseCase,
						container.Logger(),
						commands.DefaultIO().Writer,
					)
				},
			},
			{
				Name:  "create-role",
				Usage: "Create a role and grant it catalog permissions",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Required: true,
						Usage:    "Role name, unique within its scope",
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Human-readable role description",
					},
					&cli.StringFlag{
						Name:    "tenant-id",
						Aliases: []string{"t"},
						Usage:   "Tenant ID (UUID); omit to create an immutable system role",
					},
					&cli.StringFlag{
						Name:    "permissions",
						Aliases: []string{"p"},
						Usage:   "Comma-separated catalog permission names to grant",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					defer func() { _ = container.Shutdown(ctx) }()

					roleUseCase, err := container.RoleUseCase()
					if err != nil {
						return err
					}

					return commands.RunCreateRole(
						ctx,
						roleUseCase,
						container.Logger(),
						cmd.String("name"),
						cmd.String("description"),
						cmd.String("tenant-id"),
						cmd.String("permissions"),
						cmd.String("format"),
						commands.DefaultIO().Writer,
					)
				},
			},
			{
				Name:  "issue-key",
				Usage: "Issue an API key for an agent (prints the secret once)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "agent-id",
						Aliases:  []string{"a"},
						Required: true,
						Usage:    "Agent ID (UUID)",
					},
					&cli.StringFlag{
						Name:     "tenant-id",
						Aliases:  []string{"t"},
						Required: true,
						Usage:    "Tenant ID (UUID)",
					},
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Required: true,
						Usage:    "Key name, unique per agent among active keys",
					},
					&cli.StringFlag{
						Name:    "permissions",
						Aliases: []string{"p"},
						Usage:   "Comma-separated permission names (empty issues a master key)",
					},
					&cli.DurationFlag{
						Name:    "expires-in",
						Aliases: []string{"e"},
						Usage:   "Key lifetime (e.g. 720h); omit for no expiry",
					},
					&cli.IntFlag{
						Name:  "rate-limit-per-minute",
						Usage: "Per-minute usage cap; omit for unlimited",
					},
					&cli.IntFlag{
						Name:  "rate-limit-per-hour",
						Usage: "Per-hour usage cap; omit for unlimited",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load()
					container := app.NewContainer(cfg)
					defer func() { _ = container.Shutdown(ctx) }()

					apiKeyUseCase, err := container.APIKeyUseCase()
					if err != nil {
						return err
					}

					return commands.RunIssueKey(
						ctx,
						apiKeyUseCase,
						container.Logger(),
						cmd.String("agent-id"),
						cmd.String("tenant-id"),
						cmd.String("name"),
						cmd.String("permissions"),
						cmd.Duration("expires-in"),
						int(cmd.Int("rate-limit-per-minute")),
						int(cmd.Int("rate-limit-per-hour")),
						cmd.String("format"),
						commands.DefaultIO().Writer,
					)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
