package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"Portfolio/internal/config"
	"Portfolio/pkg/logger"
)

func loadConfig(cmd *cli.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}

func main() {
	cmd := &cli.Command{
		Name:   "portfolio",
		Usage:  "Portfolio and blog API: projects, access requests, blog ingest, weather, guestbook",
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
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "sync-github",
				Usage:  "Create or update projects from the public repositories of a GitHub account",
				Action: syncGitHub,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "username",
						Usage: "GitHub account; defaults to github.username from config",
					},
				},
			},
			{
				Name:   "issue-token",
				Usage:  "Print a signed bearer token for an email",
				Action: issueToken,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Account email",
						Required: true,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}
