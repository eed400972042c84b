package syncer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"anisync/internal/catalog"
	"anisync/internal/changelog"
	"anisync/internal/config"
	"anisync/internal/history"
	"anisync/internal/logging"
	"anisync/internal/match"
	"anisync/internal/notifications"
	"anisync/internal/relcache"
	"anisync/internal/services"
	"anisync/internal/watch"
	"anisync/internal/workpool"
)

// sideTimeout bounds the history write and the outcome notification, which
// run on a detached context so an interrupted run still leaves a record.
const sideTimeout = 10 * time.Second

// SourceClient is the Annict surface the run consumes.
type SourceClient interface {
	FetchLibrary(ctx context.Context) ([]catalog.SourceEntry, []watch.Entry, error)
	FetchSourceEntry(ctx context.Context, id int, relaxed bool) (catalog.SourceEntry, bool, error)
	FetchEpisodeTotal(ctx context.Context, sourceID int) (int, error)
	ApplyChanges(ctx context.Context, instructions []watch.Instruction) (int, error)
}

// TargetClient is the AniList surface the run consumes.
type TargetClient interface {
	FetchLibrary(ctx context.Context) ([]catalog.TargetEntry, []watch.Entry, error)
	SearchTarget(ctx context.Context, title string) ([]catalog.TargetEntry, error)
	ApplyChanges(ctx context.Context, instructions []watch.Instruction) (int, error)
}

// Report summarizes one run for the operator.
type Report struct {
	RunID        string
	Direction    string
	DryRun       bool
	Processed    int
	Matched      int
	Unresolved   int
	Instructions int
	Applied      int
	Duration     time.Duration

	// Changes carries the generated instructions so the CLI can preview
	// them in dry-run mode.
	Changes []watch.Instruction
}

// Syncer coordinates one reconciliation run at a time.
type Syncer struct {
	cfg      *config.Config
	source   SourceClient
	target   TargetClient
	recorder history.Recorder
	notifier notifications.Service
	logger   *slog.Logger
}

// New builds a Syncer. A nil recorder or notifier degrades to a noop.
func New(cfg *config.Config, source SourceClient, target TargetClient, recorder history.Recorder, notifier notifications.Service, logger *slog.Logger) *Syncer {
	if recorder == nil {
		recorder = history.NopRecorder()
	}
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Syncer{
		cfg:      cfg,
		source:   source,
		target:   target,
		recorder: recorder,
		notifier: notifier,
		logger:   logging.WithComponent(logger, "syncer"),
	}
}

// Run executes one reconciliation pass. The returned Report is valid even
// when err is non-nil; counts cover whatever completed before the failure.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := s.logger.With(logging.String("run_id", runID))

	report := Report{
		RunID:     runID,
		Direction: s.cfg.Sync.Direction,
		DryRun:    s.cfg.Sync.DryRun,
	}

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("direction", report.Direction),
		logging.Bool("dry_run", report.DryRun))

	started := time.Now()
	err := s.run(ctx, logger, &report)
	report.Duration = time.Since(started)

	s.record(logger, report, started, err)
	s.notify(logger, report, err)

	if err != nil {
		logger.Error("run failed",
			logging.String(logging.FieldEventType, "run_failed"),
			logging.String("error_family", services.Classify(err)),
			logging.Error(err))
		return report, err
	}

	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_completed"),
		logging.Int("applied", report.Applied),
		logging.Int("unresolved", report.Unresolved),
		logging.String("duration", report.Duration.Round(time.Millisecond).String()))
	return report, nil
}

func (s *Syncer) run(ctx context.Context, logger *slog.Logger, report *Report) error {
	sourceRecords, sourceEntries, err := s.source.FetchLibrary(ctx)
	if err != nil {
		return err
	}
	targetRecords, targetEntries, err := s.target.FetchLibrary(ctx)
	if err != nil {
		return err
	}
	logger.Info("libraries fetched",
		logging.String(logging.FieldEventType, "libraries_fetched"),
		logging.Int("source_entries", len(sourceEntries)),
		logging.Int("target_entries", len(targetEntries)))

	index := catalog.NewIndex(sourceRecords, targetRecords, s.source, logger)

	cache, err := relcache.Open(s.cfg.RelationCache.Path, logger)
	if err != nil {
		return err
	}

	matcher := match.New(index, cache, s.target, s.cfg.Sync.MatchThreshold, logger)
	report.Processed = len(sourceEntries)

	pool := workpool.New(s.cfg.Sync.WorkerLimit, logger)
	forward := s.matchEntries(ctx, pool, matcher, sourceEntries, watch.PlatformAniList)

	var reverse []bool
	if s.cfg.Bidirectional() {
		report.Processed += len(targetEntries)
		reverse = s.matchEntries(ctx, pool, matcher, targetEntries, watch.PlatformAnnict)
	}
	pool.Wait()

	for _, ok := range forward {
		if ok {
			report.Matched++
		}
	}
	for _, ok := range reverse {
		if ok {
			report.Matched++
		}
	}
	report.Unresolved = report.Processed - report.Matched

	// A cache that cannot persist decisions poisons the run before any
	// remote write happens.
	if err := cache.WriteHealth(); err != nil {
		return err
	}

	logger.Info("match phase completed",
		logging.String(logging.FieldEventType, "match_completed"),
		logging.Int("matched", report.Matched),
		logging.Int("unresolved", report.Unresolved),
		logging.Int64("comparisons", matcher.Comparisons()))

	totals := changelog.NewTotals(index, s.source, logger)
	generator := changelog.New(totals, s.cfg.Sync.SyncComments, logger)

	if s.cfg.Bidirectional() {
		report.Changes = generator.GenerateBidirectional(ctx, sourceEntries, targetEntries)
	} else {
		report.Changes = generator.Generate(ctx, sourceEntries, targetEntries, watch.PlatformAniList)
	}
	report.Instructions = len(report.Changes)

	logger.Info("changelog generated",
		logging.String(logging.FieldEventType, "changelog_generated"),
		logging.Int("instructions", report.Instructions))

	if s.cfg.Sync.DryRun {
		logger.Info("dry run, holding all writes",
			logging.String(logging.FieldEventType, "apply_skipped"),
			logging.Int("instructions", report.Instructions))
		return nil
	}

	applied, err := s.target.ApplyChanges(ctx, report.Changes)
	report.Applied += applied
	if err != nil {
		return err
	}
	applied, err = s.source.ApplyChanges(ctx, report.Changes)
	report.Applied += applied
	if err != nil {
		return err
	}

	logger.Info("changes applied",
		logging.String(logging.FieldEventType, "apply_completed"),
		logging.Int("applied", report.Applied))
	return nil
}

// matchEntries schedules one match job per entry that lacks its counterpart's
// native id. Each job writes into its own slot; the caller reads the slots
// after Wait.
func (s *Syncer) matchEntries(ctx context.Context, pool *workpool.Pool, matcher *match.Matcher, entries []watch.Entry, counterpart watch.Platform) []bool {
	resolved := make([]bool, len(entries))
	for i := range entries {
		if entries[i].IDFor(counterpart) > 0 {
			resolved[i] = true
			continue
		}
		entry := &entries[i]
		slot := i
		pool.Push(func() {
			switch counterpart {
			case watch.PlatformAniList:
				_, ok := matcher.MatchSourceToTarget(ctx, entry)
				resolved[slot] = ok
			case watch.PlatformAnnict:
				_, ok := matcher.MatchTargetToSource(ctx, entry)
				resolved[slot] = ok
			}
		})
	}
	return resolved
}

func (s *Syncer) record(logger *slog.Logger, report Report, started time.Time, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), sideTimeout)
	defer cancel()

	run := history.Run{
		ID:           report.RunID,
		StartedAt:    started.UTC(),
		FinishedAt:   started.Add(report.Duration).UTC(),
		Direction:    report.Direction,
		DryRun:       report.DryRun,
		Processed:    report.Processed,
		Matched:      report.Matched,
		Unresolved:   report.Unresolved,
		Instructions: report.Instructions,
		Applied:      report.Applied,
		Outcome:      history.OutcomeOK,
	}
	if runErr != nil {
		run.Outcome = history.OutcomeFailed
		run.Error = runErr.Error()
	}

	if err := s.recorder.RecordRun(ctx, run); err != nil {
		logger.Warn("history record failed",
			logging.String(logging.FieldEventType, "history_write_failed"),
			logging.Error(err))
	}
}

func (s *Syncer) notify(logger *slog.Logger, report Report, runErr error) {
	// An operator interrupt is not an outcome worth pushing to a phone.
	if errors.Is(runErr, context.Canceled) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sideTimeout)
	defer cancel()

	var (
		event   notifications.Event
		payload notifications.Payload
	)
	switch {
	case runErr != nil:
		event = notifications.EventRunFailed
		payload = notifications.Payload{
			"direction": report.Direction,
			"error":     runErr.Error(),
		}
	case report.DryRun:
		return
	default:
		event = notifications.EventRunCompleted
		payload = notifications.Payload{
			"direction":  report.Direction,
			"applied":    strconv.Itoa(report.Applied),
			"unresolved": strconv.Itoa(report.Unresolved),
			"duration":   report.Duration.Round(time.Second).String(),
		}
	}

	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		logger.Warn("notification failed",
			logging.String(logging.FieldEventType, "notify_failed"),
			logging.Error(err))
	}
}
