package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/vaultsync/internal/app"
	"github.com/tildaslashalef/vaultsync/internal/knowledge"
	"github.com/tildaslashalef/vaultsync/internal/utils"
)

// KnowledgeCommand returns the CLI command group for the Open WebUI mirror
func KnowledgeCommand() *cli.Command {
	return &cli.Command{
		Name:    "knowledge",
		Aliases: []string{"kb"},
		Usage:   "Mirror documentation into Open WebUI knowledge bases",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the remote knowledge collections",
				Action: knowledgeListAction,
			},
			{
				Name:  "sync",
				Usage: "Upload changed docs into their collections",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "repo",
						Aliases: []string{"r"},
						Usage:   "Mirror only one organization (\"org\") or project (\"org/project\")",
					},
				},
				Action: knowledgeSyncAction,
			},
		},
	}
}

func knowledgeListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	bases, err := application.Knowledge.List(context.Background())
	if err != nil {
		return err
	}

	if len(bases) == 0 {
		utils.PrintInfo("No knowledge bases found")
		return nil
	}

	rows := make([][]string, 0, len(bases))
	for _, kb := range bases {
		rows = append(rows, []string{kb.ID, kb.Name, kb.Description})
	}

	utils.PrintHeading("Knowledge Bases")
	utils.PrintTable([]string{"ID", "Name", "Description"}, rows)
	return nil
}

func knowledgeSyncAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	opts := knowledge.MirrorOptions{
		DryRun: c.Bool("dry-run"),
	}
	if repo := c.String("repo"); repo != "" {
		org, project, found := strings.Cut(repo, "/")
		if org == "" || (found && project == "") {
			return fmt.Errorf("invalid repo filter %q, expected \"org\" or \"org/project\"", repo)
		}
		opts.Org = org
		opts.Project = project
	}

	if opts.DryRun {
		utils.PrintInfo("Dry run: nothing will be uploaded")
	}

	summary, err := application.Knowledge.Mirror(context.Background(), opts)
	if err != nil {
		return err
	}

	printMirrorSummary(summary)
	return nil
}

func printMirrorSummary(summary *knowledge.MirrorSummary) {
	utils.PrintHeading("Knowledge Mirror Summary")

	var rows [][]string
	for _, r := range summary.Results {
		rows = append(rows, []string{
			r.Pair,
			r.Collection,
			fmt.Sprintf("%d", r.Uploaded),
			fmt.Sprintf("%d", r.Skipped),
			fmt.Sprintf("%d", r.Removed),
			fmt.Sprintf("%d", len(r.Errors)),
		})
	}

	if len(rows) > 0 {
		utils.PrintTable(
			[]string{"Pair", "Collection", "Uploaded", "Skipped", "Removed", "Errors"},
			rows,
		)
	}

	utils.PrintDivider()
	utils.PrintKeyValue("Total uploaded", fmt.Sprintf("%d", summary.Uploaded))
	utils.PrintKeyValue("Total skipped (unchanged)", fmt.Sprintf("%d", summary.Skipped))
	utils.PrintKeyValue("Total removed", fmt.Sprintf("%d", summary.Removed))
	utils.PrintKeyValue("Total errors", fmt.Sprintf("%d", summary.Errored))
	utils.PrintKeyValue("Duration", summary.Duration.Round(time.Millisecond).String())

	if summary.Errored > 0 {
		utils.PrintWarning("Some files failed to mirror, see log output")
	} else {
		utils.PrintSuccess("Knowledge mirror completed")
	}
}
