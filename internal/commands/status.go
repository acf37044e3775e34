package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/vaultsync/internal/app"
	"github.com/tildaslashalef/vaultsync/internal/utils"
)

// StatusCommand returns the CLI command for inspecting sync state
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:        "status",
		Usage:       "Show when each pair was last synced",
		Description: "Reads the persisted sync state and prints the last completed pass per pair. Never modifies anything.",
		Action:      statusAction,
	}
}

// statusAction prints the last-sync table from persisted state
func statusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to get application from context: %w", err)
	}

	times := application.Sync.LastSyncTimes()
	if len(times) == 0 {
		utils.PrintInfo("No sync state recorded yet, run \"vaultsync sync\" first")
		return nil
	}

	keys := make([]string, 0, len(times))
	for k := range times {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	now := time.Now()
	for _, k := range keys {
		t := times[k]
		rows = append(rows, []string{
			k,
			t.Format(time.RFC3339),
			now.Sub(t).Round(time.Second).String() + " ago",
		})
	}

	utils.PrintHeading("Sync Status")
	utils.PrintTable([]string{"Pair", "Last Sync", "Age"}, rows)
	return nil
}
