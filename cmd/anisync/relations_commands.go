package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"anisync/internal/logging"
	"anisync/internal/relcache"
)

func newRelationsCommand(cmdCtx *commandContext) *cobra.Command {
	relationsCmd := &cobra.Command{
		Use:   "relations",
		Short: "Inspect and manage the relation cache",
	}

	relationsCmd.AddCommand(newRelationsListCommand(cmdCtx))
	relationsCmd.AddCommand(newRelationsRemoveCommand(cmdCtx))
	relationsCmd.AddCommand(newRelationsClearCommand(cmdCtx))

	return relationsCmd
}

func newRelationsListCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached identity pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openRelationCache(cmdCtx)
			if err != nil {
				return err
			}
			relations := cache.List()
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), relations)
			}
			if len(relations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Relation cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(relations))
			for i, rel := range relations {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					strconv.Itoa(rel.SourceID),
					strconv.Itoa(rel.TargetID),
					rel.Title,
					rel.CachedAt.Format("2006-01-02"),
				})
			}
			tableText := renderTable(
				[]string{"#", "Annict", "AniList", "Title", "Cached"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), tableText)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newRelationsRemoveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <number>",
		Short: "Remove one cached pair by its list number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("relation number %q is not an integer", args[0])
			}
			cache, err := openRelationCache(cmdCtx)
			if err != nil {
				return err
			}
			relations := cache.List()
			if err := cache.Remove(number); err != nil {
				return err
			}
			removed := relations[number-1]
			fmt.Fprintf(cmd.OutOrStdout(), "Removed relation %d (annict %d -> anilist %d)\n",
				number, removed.SourceID, removed.TargetID)
			return nil
		},
	}
}

func newRelationsClearCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openRelationCache(cmdCtx)
			if err != nil {
				return err
			}
			count := cache.Count()
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d relation(s)\n", count)
			return nil
		},
	}
}

// openRelationCache opens the configured cache without log output; these are
// inspection commands, not runs.
func openRelationCache(cmdCtx *commandContext) (*relcache.Cache, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return relcache.Open(cfg.RelationCache.Path, logging.NewNop())
}
