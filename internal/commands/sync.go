package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/vaultsync/internal/app"
	"github.com/tildaslashalef/vaultsync/internal/syncer"
	"github.com/tildaslashalef/vaultsync/internal/utils"
)

// SyncCommand returns the CLI command for a one-shot sync pass
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one sync pass over the discovered pairs",
		Description: "Discovers every project and company docs folder, reconciles each " +
			"with its vault mirror, and persists the sync state. Use --repo to " +
			"restrict the pass to one organization or one org/project.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				Aliases: []string{"r"},
				Usage:   "Sync only one organization (\"org\") or project (\"org/project\")",
			},
		},
		Action: syncAction,
	}
}

// syncAction runs one pass and prints the aggregate summary
func syncAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	opts, err := runOptions(c)
	if err != nil {
		return err
	}

	if opts.DryRun {
		utils.PrintInfo("Dry run: no files or state will be modified")
	}

	summary, err := application.Sync.RunOnce(context.Background(), opts)
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

// runOptions builds the pass options from global and command flags
func runOptions(c *cli.Context) (syncer.RunOptions, error) {
	opts := syncer.RunOptions{
		DryRun: c.Bool("dry-run"),
		Force:  c.Bool("force"),
	}

	repo := c.String("repo")
	if repo == "" {
		return opts, nil
	}

	org, project, found := strings.Cut(repo, "/")
	if org == "" || (found && project == "") {
		return opts, fmt.Errorf("invalid repo filter %q, expected \"org\" or \"org/project\"", repo)
	}

	opts.Org = org
	opts.Project = project
	return opts, nil
}

// printSummary renders the per-pair table and aggregate counts
func printSummary(summary *syncer.Summary) {
	utils.PrintHeading("Sync Summary")

	var rows [][]string
	for _, r := range summary.Results {
		if r.Synced == 0 && r.Conflicted == 0 && len(r.Errors) == 0 {
			continue
		}
		rows = append(rows, []string{
			r.Pair,
			string(r.Environment),
			r.Branch,
			fmt.Sprintf("%d", r.Synced),
			fmt.Sprintf("%d", r.Skipped),
			fmt.Sprintf("%d", r.Conflicted),
			fmt.Sprintf("%d", len(r.Errors)),
		})
	}

	if len(rows) > 0 {
		utils.PrintTable(
			[]string{"Pair", "Environment", "Branch", "Synced", "Skipped", "Conflicts", "Errors"},
			rows,
		)
	}

	utils.PrintDivider()
	utils.PrintKeyValue("Total synced", fmt.Sprintf("%d", summary.Synced))
	utils.PrintKeyValue("Total skipped (unchanged)", fmt.Sprintf("%d", summary.Skipped))
	utils.PrintKeyValue("Total conflicts", fmt.Sprintf("%d", summary.Conflicted))
	utils.PrintKeyValue("Total errors", fmt.Sprintf("%d", summary.Errored))
	utils.PrintKeyValue("Duration", summary.Duration.Round(time.Millisecond).String())

	if summary.Conflicted > 0 {
		utils.PrintWarning("Conflicts need manual resolution, see " + color.YellowString("log output"))
	}
	if summary.Errored > 0 {
		for _, r := range summary.Results {
			for _, e := range r.Errors {
				utils.PrintError(r.Pair + ": " + e)
			}
		}
	}
}
