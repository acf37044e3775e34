package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/vaultsync/internal/app"
	"github.com/tildaslashalef/vaultsync/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
	Author     = "unknown"
	Email      = "unknown"
)

var (
	globalFlags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Usage:   "Report what would change without writing files or state",
			Value:   false,
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Push every repo file to the vault regardless of state",
			Value: false,
		},
	}
)

func main() {
	cliApp := &cli.App{
		Name:  "vaultsync",
		Usage: "Bidirectional docs sync between git repos and an Obsidian vault",
		Description: "Vaultsync keeps documentation folders in git repositories and their\n" +
			"mirrors in an Obsidian vault reconciled in both directions.\n\n" +
			"When run without subcommands, vaultsync performs one sync pass (default action).\n" +
			"Additional subcommands provide continuous watching, state inspection and\n" +
			"knowledge-base mirroring.",
		Version: Version,
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Authors: []*cli.Author{
			{
				Name:  Author,
				Email: Email,
			},
		},
		Flags: globalFlags,
		Before: func(c *cli.Context) error {
			// Initialize the application
			application, err := app.New()
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			// Store the app instance in the context for later use
			c.App.Metadata = map[string]interface{}{
				"app": application,
			}

			return nil
		},
		After: func(c *cli.Context) error {
			// Gracefully shutdown the application
			if app, ok := c.App.Metadata["app"].(*app.App); ok {
				return app.Shutdown()
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.SyncCommand(),
			commands.WatchCommand(),
			commands.StatusCommand(),
			commands.KnowledgeCommand(),
		},
		Action: func(c *cli.Context) error {
			// Default action is to run one sync pass
			return commands.SyncCommand().Action(c)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
