package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"anisync/internal/history"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past sync runs",
	}

	historyCmd.AddCommand(newHistoryListCommand(cmdCtx))

	return historyCmd
}

func newHistoryListCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Run history is disabled in the configuration")
				return nil
			}
			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					shortRunID(run.ID),
					run.Direction,
					runMode(run.DryRun),
					strconv.Itoa(run.Processed),
					strconv.Itoa(run.Applied),
					strconv.Itoa(run.Unresolved),
					run.Outcome,
				})
			}
			tableText := renderTable(
				[]string{"Started", "Run", "Direction", "Mode", "Processed", "Applied", "Unresolved", "Outcome"},
				rows,
				[]columnAlignment{
					alignLeft, alignLeft, alignLeft, alignLeft,
					alignRight, alignRight, alignRight, alignLeft,
				},
			)
			fmt.Fprintln(cmd.OutOrStdout(), tableText)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runMode(dryRun bool) string {
	if dryRun {
		return "dry-run"
	}
	return "live"
}
