package history

import (
	"context"
	"time"

	"anisync/internal/config"
)

// Run outcomes stored in the runs table.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Run is one reconciliation pass as shown by `anisync history`.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Direction    string
	DryRun       bool
	Processed    int
	Matched      int
	Unresolved   int
	Instructions int
	Applied      int
	Outcome      string
	Error        string
}

// Recorder persists run summaries.
type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// NewRecorder opens the SQLite store when history is enabled. A disabled
// store yields a recorder that drops runs and lists nothing.
func NewRecorder(cfg *config.Config) (Recorder, error) {
	if cfg == nil || !cfg.History.Enabled {
		return NopRecorder(), nil
	}
	return Open(cfg)
}

// NopRecorder returns a Recorder that discards everything.
func NopRecorder() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) RecordRun(context.Context, Run) error         { return nil }
func (nopRecorder) ListRuns(context.Context, int) ([]Run, error) { return nil, nil }
func (nopRecorder) Close() error                                 { return nil }
