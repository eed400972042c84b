package changelog

import (
	"context"
	"log/slog"

	"anisync/internal/catalog"
	"anisync/internal/logging"
	"anisync/internal/watch"
)

// EpisodeTotals answers "how many episodes does this title have in the
// receiving catalog". Zero means unknown, and unknown totals disable
// clamping for that entry.
type EpisodeTotals interface {
	EpisodeTotal(ctx context.Context, entry watch.Entry) int
}

// TotalFetcher asks a remote service for an episode total when the local
// snapshots have none. Implemented by the source-catalog client.
type TotalFetcher interface {
	FetchEpisodeTotal(ctx context.Context, sourceID int) (int, error)
}

// Totals resolves episode counts from the catalog index first and falls
// back to a remote fetch only when every local record is silent.
type Totals struct {
	index   *catalog.Index
	fetcher TotalFetcher
	logger  *slog.Logger
}

func NewTotals(index *catalog.Index, fetcher TotalFetcher, logger *slog.Logger) *Totals {
	return &Totals{
		index:   index,
		fetcher: fetcher,
		logger:  logging.WithComponent(logger, "changelog"),
	}
}

// EpisodeTotal tries, in order: the target record by native id, the target
// record through the MAL bridge, the source record by native id, then the
// remote fetcher. Lookup failures degrade to zero rather than erroring so
// a missing total never blocks an otherwise valid instruction.
func (t *Totals) EpisodeTotal(ctx context.Context, entry watch.Entry) int {
	if t == nil {
		return 0
	}
	if t.index != nil {
		if entry.AniListID > 0 {
			if target, ok := t.index.TargetByID(entry.AniListID); ok && target.EpisodeCount > 0 {
				return target.EpisodeCount
			}
		}
		if entry.MALID > 0 {
			if target, ok := t.index.TargetByExternalID(catalog.SiteMyAnimeList, entry.MALID); ok && target.EpisodeCount > 0 {
				return target.EpisodeCount
			}
		}
		if entry.AnnictID > 0 {
			if source, ok := t.index.SourceByID(entry.AnnictID); ok && source.EpisodeCount > 0 {
				return source.EpisodeCount
			}
		}
	}
	if t.fetcher == nil || entry.AnnictID <= 0 {
		return 0
	}
	total, err := t.fetcher.FetchEpisodeTotal(ctx, entry.AnnictID)
	if err != nil {
		t.logger.Warn("episode total lookup failed",
			logging.String(logging.FieldEventType, "episode_total_failed"),
			logging.Int("annict_id", entry.AnnictID),
			logging.String(logging.FieldImpact, "progress clamping skipped for this title"),
			logging.Error(err))
		return 0
	}
	if total < 0 {
		return 0
	}
	return total
}
