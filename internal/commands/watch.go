package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/vaultsync/internal/app"
	"github.com/tildaslashalef/vaultsync/internal/utils"
)

// WatchCommand returns the CLI command for continuous syncing
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Sync continuously on a fixed interval",
		Description: "Runs full sync passes back to back, sleeping between them, until " +
			"interrupted. State is persisted after every pass; interrupting " +
			"mid-pass forfeits only that pass's unpersisted progress.",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Sleep between passes (overrides the configured interval)",
			},
		},
		Action: watchAction,
	}
}

// watchAction loops passes until SIGINT/SIGTERM
func watchAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	opts, err := runOptions(c)
	if err != nil {
		return err
	}

	if interval := c.Duration("interval"); interval > 0 {
		application.Config.Sync.Interval = interval
	}
	if application.Config.Sync.Interval <= 0 {
		application.Config.Sync.Interval = 5 * time.Minute
	}

	utils.PrintInfo(fmt.Sprintf("Watching for changes (interval: %s), press Ctrl+C to stop",
		application.Config.Sync.Interval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Sync.Watch(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	utils.PrintInfo("Stopping watcher")
	return nil
}
