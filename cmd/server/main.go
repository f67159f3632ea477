package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	r := &runner{log: logrus.New()}

	app := &cli.Command{
		Name:  "kanban",
		Usage: "Multi-tenant kanban API with realtime board sync",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				Sources: cli.EnvVars("KANBAN_CONFIG"),
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and realtime hub",
				Action: r.Serve,
			},
			{
				Name:   "migrate",
				Usage:  "Create or update the database schema and exit",
				Action: r.Migrate,
			},
			{
				Name:  "watch",
				Usage: "Mount a board through the sync agent and print it on every change",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Base URL of the API",
						Value: "http://localhost:5000",
					},
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Bearer token from /api/auth/login",
						Sources:  cli.EnvVars("KANBAN_TOKEN"),
						Required: true,
					},
					&cli.StringFlag{
						Name:     "board",
						Usage:    "Board slug to mount",
						Required: true,
					},
				},
				Action: r.Watch,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		r.log.WithError(err).Fatal("application error")
	}
}
