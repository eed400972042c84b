package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"anisync/internal/config"
	"anisync/internal/history"
	"anisync/internal/notifications"
	"anisync/internal/services/anilist"
	"anisync/internal/services/annict"
	"anisync/internal/syncer"
	"anisync/internal/watch"
)

func newSyncCommand(cmdCtx *commandContext) *cobra.Command {
	var dryRun bool
	var direction string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation against both platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.Sync.DryRun = true
			}
			if trimmed := strings.ToLower(strings.TrimSpace(direction)); trimmed != "" {
				switch trimmed {
				case config.DirectionOneWay, config.DirectionBidirectional:
					cfg.Sync.Direction = trimmed
				default:
					return fmt.Errorf("--direction must be %q or %q", config.DirectionOneWay, config.DirectionBidirectional)
				}
			}

			// One run at a time: concurrent runs would race on the relation
			// cache file and double-write the platforms.
			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another anisync run holds %s", cfg.LockPath())
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := cmdCtx.buildLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			recorder, err := history.NewRecorder(cfg)
			if err != nil {
				return err
			}
			defer recorder.Close()

			source := annict.New(cfg.Annict, logger)
			target := anilist.New(cfg.AniList, cfg.Sync.SyncComments, logger)
			notifier := notifications.NewService(cfg)

			engine := syncer.New(cfg, source, target, recorder, notifier, logger)
			report, runErr := engine.Run(cmd.Context())
			if runErr != nil {
				if report.Applied > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%d change(s) were applied before the failure.\n", report.Applied)
				}
				return runErr
			}

			writeReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute and print instructions without writing")
	cmd.Flags().StringVar(&direction, "direction", "", "Override sync.direction (one-way or bidirectional)")
	return cmd
}

func writeReport(out io.Writer, report syncer.Report) {
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderSectionHeader("sync "+report.RunID, colorize))
	mode := "live"
	if report.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, mode, colorize))
	fmt.Fprintln(out, renderStatusLine("Direction", statusInfo, report.Direction, colorize))
	fmt.Fprintln(out, renderStatusLine("Processed", statusInfo, strconv.Itoa(report.Processed), colorize))
	fmt.Fprintln(out, renderStatusLine("Matched", statusOK, strconv.Itoa(report.Matched), colorize))

	unresolvedKind := statusOK
	if report.Unresolved > 0 {
		unresolvedKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Unresolved", unresolvedKind, strconv.Itoa(report.Unresolved), colorize))
	fmt.Fprintln(out, renderStatusLine("Instructions", statusInfo, strconv.Itoa(report.Instructions), colorize))

	applied := strconv.Itoa(report.Applied)
	if report.DryRun {
		applied = "0 (held)"
	}
	fmt.Fprintln(out, renderStatusLine("Applied", statusOK, applied, colorize))
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, report.Duration.Round(time.Millisecond).String(), colorize))

	if report.DryRun && len(report.Changes) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Held instructions:")
		fmt.Fprintln(out, renderInstructionTable(report.Changes))
	}
}

func renderInstructionTable(changes []watch.Instruction) string {
	rows := make([][]string, 0, len(changes))
	for i, change := range changes {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(change.Platform),
			strconv.Itoa(change.After.IDFor(change.Platform)),
			change.After.Title,
			describeChanges(change),
		})
	}
	return renderTable(
		[]string{"#", "Platform", "ID", "Title", "Changes"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

// describeChanges summarizes what an instruction would write, field by field.
func describeChanges(instruction watch.Instruction) string {
	after := instruction.After
	before := instruction.Before
	if before == nil {
		parts := []string{"status " + after.Status.String()}
		if after.Progress > 0 {
			parts = append(parts, fmt.Sprintf("progress %d", after.Progress))
		}
		if after.Score > 0 {
			parts = append(parts, fmt.Sprintf("score %.1f", after.Score))
		}
		return "create: " + strings.Join(parts, ", ")
	}

	var parts []string
	if before.Status != after.Status {
		parts = append(parts, fmt.Sprintf("status %s -> %s", before.Status, after.Status))
	}
	if before.Progress != after.Progress {
		parts = append(parts, fmt.Sprintf("progress %d -> %d", before.Progress, after.Progress))
	}
	if before.Score != after.Score {
		parts = append(parts, fmt.Sprintf("score %.1f -> %.1f", before.Score, after.Score))
	}
	if before.Comment != after.Comment {
		parts = append(parts, "comment")
	}
	if len(parts) == 0 {
		return "no field changes"
	}
	return strings.Join(parts, ", ")
}
