package match

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"log/slog"

	"anisync/internal/catalog"
	"anisync/internal/logging"
	"anisync/internal/relcache"
	"anisync/internal/textutil"
	"anisync/internal/watch"
)

// DefaultThreshold is the minimum similarity for a title pair to count as
// textual evidence on its own.
const DefaultThreshold = 0.75

// TargetSearcher queries the target catalog's title search. Implementations
// retry and rate-limit internally.
type TargetSearcher interface {
	SearchTarget(ctx context.Context, title string) ([]catalog.TargetEntry, error)
}

// Matcher resolves cross-catalog identity for watch entries. Safe for
// concurrent use; confirmed pairs are appended to the relation cache so the
// decision is paid for once.
type Matcher struct {
	index     *catalog.Index
	cache     *relcache.Cache
	searcher  TargetSearcher
	threshold float64
	logger    *slog.Logger

	comparisons atomic.Int64
}

// New builds a matcher over the given index and relation cache. A nil
// searcher disables the remote search rescue. Threshold values outside
// (0, 1] fall back to DefaultThreshold.
func New(index *catalog.Index, cache *relcache.Cache, searcher TargetSearcher, threshold float64, logger *slog.Logger) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{
		index:     index,
		cache:     cache,
		searcher:  searcher,
		threshold: threshold,
		logger:    logging.WithComponent(logger, "match"),
	}
}

// Comparisons reports how many title-pair similarity scores the matcher has
// computed. Relation-cache and MyAnimeList-bridge resolutions never score
// titles.
func (m *Matcher) Comparisons() int64 {
	return m.comparisons.Load()
}

type scoredTarget struct {
	entry catalog.TargetEntry
	score float64
}

type scoredSource struct {
	entry catalog.SourceEntry
	score float64
}

// MatchSourceToTarget resolves the AniList media corresponding to the watch
// entry's Annict work, filling the resolved ids into the entry. ok=false
// means unmatched, which is a defined outcome rather than an error.
func (m *Matcher) MatchSourceToTarget(ctx context.Context, entry *watch.Entry) (catalog.TargetEntry, bool) {
	if entry == nil || entry.AnnictID <= 0 {
		return catalog.TargetEntry{}, false
	}
	sourceID := entry.AnnictID

	if rel, ok := m.cache.Lookup(sourceID); ok {
		target, found := m.index.TargetByID(rel.TargetID)
		if !found {
			// Identity is known even when the media is absent from the
			// current snapshot; the stub carries the id and cached title.
			target = catalog.TargetEntry{ID: rel.TargetID, Title: rel.Title}
		}
		m.fillForward(entry, catalog.SourceEntry{}, target)
		m.logDecision("relation_cache", sourceID, target.ID, 0)
		return target, true
	}

	source, ok := m.sourceRecord(ctx, sourceID)
	if !ok {
		return catalog.TargetEntry{}, false
	}

	if malID := source.MALID(); malID > 0 {
		if target, ok := m.index.TargetByExternalID(catalog.SiteMyAnimeList, malID); ok {
			m.remember(sourceID, target.ID, source.Title)
			m.fillForward(entry, source, target)
			m.logDecision("mal_bridge", sourceID, target.ID, 0)
			return target, true
		}
	}

	profiles := profilesFor(source.Titles())
	if len(profiles) == 0 {
		return catalog.TargetEntry{}, false
	}

	candidates, best, haveBest := m.scanTargets(profiles)
	if target, score, ok := m.pickTarget(source, candidates, best, haveBest); ok {
		m.remember(sourceID, target.ID, source.Title)
		m.fillForward(entry, source, target)
		m.logDecision(decisionLabel(len(candidates) > 0), sourceID, target.ID, score)
		return target, true
	}

	if target, score, ok := m.searchRescue(ctx, source, profiles); ok {
		m.remember(sourceID, target.ID, source.Title)
		m.fillForward(entry, source, target)
		m.logDecision("remote_search", sourceID, target.ID, score)
		return target, true
	}

	m.logger.Debug("no counterpart found",
		logging.Int("source_id", sourceID),
		logging.String("title", source.Title))
	return catalog.TargetEntry{}, false
}

// MatchTargetToSource resolves the Annict work corresponding to the watch
// entry's AniList media. The reverse direction matches against the indexed
// source snapshot only; there is no remote rescue because the source catalog
// exposes no title search.
func (m *Matcher) MatchTargetToSource(ctx context.Context, entry *watch.Entry) (catalog.SourceEntry, bool) {
	if entry == nil || entry.AniListID <= 0 {
		return catalog.SourceEntry{}, false
	}
	targetID := entry.AniListID

	if rel, ok := m.cache.LookupByTarget(targetID); ok {
		source, found := m.relaxedSource(ctx, rel.SourceID)
		if !found {
			source = catalog.SourceEntry{
				Title:   rel.Title,
				SiteIDs: map[string]int{catalog.SiteAnnict: rel.SourceID},
			}
		}
		m.fillReverse(entry, source, catalog.TargetEntry{})
		m.logDecision("relation_cache", source.ID(), targetID, 0)
		return source, true
	}

	target, ok := m.index.TargetByID(targetID)
	if !ok {
		return catalog.SourceEntry{}, false
	}

	if malID := target.MALID(); malID > 0 {
		if source, ok := m.index.SourceByExternalID(catalog.SiteMAL, malID); ok {
			m.remember(source.ID(), targetID, target.Title)
			m.fillReverse(entry, source, target)
			m.logDecision("mal_bridge", source.ID(), targetID, 0)
			return source, true
		}
	}

	profiles := profilesFor(target.Titles())
	if len(profiles) == 0 {
		return catalog.SourceEntry{}, false
	}

	candidates, best, haveBest := m.scanSources(profiles)
	if source, score, ok := m.pickSource(target, candidates, best, haveBest); ok {
		m.remember(source.ID(), targetID, target.Title)
		m.fillReverse(entry, source, target)
		m.logDecision(decisionLabel(len(candidates) > 0), source.ID(), targetID, score)
		return source, true
	}

	m.logger.Debug("no counterpart found",
		logging.Int("target_id", targetID),
		logging.String("title", target.Title))
	return catalog.SourceEntry{}, false
}

// sourceRecord materializes the catalog record behind a watch entry. The
// relaxed fetch keeps dateless records usable for non-strict comparison; the
// compatibility gate refuses them whenever strict evidence is required.
func (m *Matcher) sourceRecord(ctx context.Context, id int) (catalog.SourceEntry, bool) {
	source, ok, err := m.index.FetchSource(ctx, id, true)
	if err != nil {
		m.logger.Warn("source record lookup failed",
			logging.String(logging.FieldEventType, "source_lookup_failed"),
			logging.Int("source_id", id),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry stays unmatched this run"))
		return catalog.SourceEntry{}, false
	}
	return source, ok
}

func (m *Matcher) relaxedSource(ctx context.Context, id int) (catalog.SourceEntry, bool) {
	source, ok, err := m.index.FetchSource(ctx, id, true)
	if err != nil {
		m.logger.Debug("cached source id did not resolve",
			logging.Int("source_id", id),
			logging.Error(err))
		return catalog.SourceEntry{}, false
	}
	return source, ok
}

// scanTargets scores every indexed target against the prepared profiles.
// Pairs at or above the threshold become candidates; the single best pair is
// tracked regardless, with ties broken toward the lower id so runs stay
// reproducible.
func (m *Matcher) scanTargets(profiles []*textutil.Profile) ([]scoredTarget, scoredTarget, bool) {
	var candidates []scoredTarget
	var best scoredTarget
	haveBest := false
	m.index.EachTarget(func(target catalog.TargetEntry) {
		score := m.bestScore(profiles, target.Titles())
		if score <= 0 {
			return
		}
		if score >= m.threshold {
			candidates = append(candidates, scoredTarget{entry: target, score: score})
		}
		if !haveBest || score > best.score || (score == best.score && target.ID < best.entry.ID) {
			best = scoredTarget{entry: target, score: score}
			haveBest = true
		}
	})
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.ID < candidates[j].entry.ID
	})
	return candidates, best, haveBest
}

func (m *Matcher) scanSources(profiles []*textutil.Profile) ([]scoredSource, scoredSource, bool) {
	var candidates []scoredSource
	var best scoredSource
	haveBest := false
	m.index.EachSource(func(source catalog.SourceEntry) {
		score := m.bestScore(profiles, source.Titles())
		if score <= 0 {
			return
		}
		if score >= m.threshold {
			candidates = append(candidates, scoredSource{entry: source, score: score})
		}
		if !haveBest || score > best.score || (score == best.score && source.ID() < best.entry.ID()) {
			best = scoredSource{entry: source, score: score}
			haveBest = true
		}
	})
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.ID() < candidates[j].entry.ID()
	})
	return candidates, best, haveBest
}

// pickTarget walks the ordered candidates through the compatibility gate.
// An empty candidate set falls back to the single best pair in strict mode.
func (m *Matcher) pickTarget(source catalog.SourceEntry, candidates []scoredTarget, best scoredTarget, haveBest bool) (catalog.TargetEntry, float64, bool) {
	strict := false
	if len(candidates) == 0 {
		if !haveBest {
			return catalog.TargetEntry{}, 0, false
		}
		candidates = []scoredTarget{best}
		strict = true
	}
	for _, candidate := range candidates {
		if compatible(source, candidate.entry, strict) {
			return candidate.entry, candidate.score, true
		}
	}
	return catalog.TargetEntry{}, 0, false
}

func (m *Matcher) pickSource(target catalog.TargetEntry, candidates []scoredSource, best scoredSource, haveBest bool) (catalog.SourceEntry, float64, bool) {
	strict := false
	if len(candidates) == 0 {
		if !haveBest {
			return catalog.SourceEntry{}, 0, false
		}
		candidates = []scoredSource{best}
		strict = true
	}
	for _, candidate := range candidates {
		if compatible(candidate.entry, target, strict) {
			return candidate.entry, candidate.score, true
		}
	}
	return catalog.SourceEntry{}, 0, false
}

// searchRescue queries the target catalog's search endpoint after the index
// scan came up empty. Hits already indexed were scored in the scan, so only
// new entries run through the threshold and compatibility logic; a match is
// memoized into the index.
func (m *Matcher) searchRescue(ctx context.Context, source catalog.SourceEntry, profiles []*textutil.Profile) (catalog.TargetEntry, float64, bool) {
	if m.searcher == nil {
		return catalog.TargetEntry{}, 0, false
	}
	results, err := m.searcher.SearchTarget(ctx, source.Title)
	if err != nil {
		m.logger.Warn("target title search failed",
			logging.String(logging.FieldEventType, "target_search_failed"),
			logging.String("title", source.Title),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry stays unmatched this run"))
		return catalog.TargetEntry{}, 0, false
	}

	var candidates []scoredTarget
	var best scoredTarget
	haveBest := false
	for _, target := range results {
		if target.ID <= 0 {
			continue
		}
		if _, ok := m.index.TargetByID(target.ID); ok {
			continue
		}
		score := m.bestScore(profiles, target.Titles())
		if score <= 0 {
			continue
		}
		if score >= m.threshold {
			candidates = append(candidates, scoredTarget{entry: target, score: score})
		}
		if !haveBest || score > best.score || (score == best.score && target.ID < best.entry.ID) {
			best = scoredTarget{entry: target, score: score}
			haveBest = true
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.ID < candidates[j].entry.ID
	})

	target, score, ok := m.pickTarget(source, candidates, best, haveBest)
	if !ok {
		return catalog.TargetEntry{}, 0, false
	}
	m.index.AddTarget(target)
	return target, score, true
}

// bestScore returns the highest similarity between any prepared profile and
// any of the given titles.
func (m *Matcher) bestScore(profiles []*textutil.Profile, titles []string) float64 {
	best := 0.0
	for _, title := range titles {
		candidate := textutil.NewProfile(title)
		if candidate == nil {
			continue
		}
		for _, profile := range profiles {
			m.comparisons.Add(1)
			if score := textutil.Similarity(profile, candidate); score > best {
				best = score
			}
		}
	}
	return best
}

// remember appends a confirmed pair to the relation cache. A persistence
// failure is logged and the match still stands; the cache's write health is
// checked once per run by the caller.
func (m *Matcher) remember(sourceID, targetID int, title string) {
	rel := relcache.Relation{SourceID: sourceID, TargetID: targetID, Title: title}
	if err := m.cache.Append(rel); err != nil {
		m.logger.Warn("relation cache append failed",
			logging.String(logging.FieldEventType, "relcache_append_failed"),
			logging.Int("source_id", sourceID),
			logging.Int("target_id", targetID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "match will be recomputed next run"))
	}
}

func (m *Matcher) fillForward(entry *watch.Entry, source catalog.SourceEntry, target catalog.TargetEntry) {
	entry.AniListID = target.ID
	if entry.MALID == 0 {
		if malID := source.MALID(); malID > 0 {
			entry.MALID = malID
		} else {
			entry.MALID = target.MALID()
		}
	}
	if strings.TrimSpace(entry.Title) == "" {
		if source.Title != "" {
			entry.Title = source.Title
		} else {
			entry.Title = target.Title
		}
	}
}

func (m *Matcher) fillReverse(entry *watch.Entry, source catalog.SourceEntry, target catalog.TargetEntry) {
	entry.AnnictID = source.ID()
	if entry.MALID == 0 {
		if malID := source.MALID(); malID > 0 {
			entry.MALID = malID
		} else {
			entry.MALID = target.MALID()
		}
	}
	if strings.TrimSpace(entry.Title) == "" {
		if target.Title != "" {
			entry.Title = target.Title
		} else {
			entry.Title = source.Title
		}
	}
}

func (m *Matcher) logDecision(result string, sourceID, targetID int, score float64) {
	attrs := []logging.Attr{
		logging.String(logging.FieldDecisionType, "identity_resolution"),
		logging.String("decision_result", result),
		logging.Int("source_id", sourceID),
		logging.Int("target_id", targetID),
	}
	if score > 0 {
		attrs = append(attrs, logging.Float64("score", score))
	}
	m.logger.Debug("identity resolved", logging.Args(attrs...)...)
}

func decisionLabel(fromCandidates bool) string {
	if fromCandidates {
		return "fuzzy"
	}
	return "strict_best"
}

func profilesFor(titles []string) []*textutil.Profile {
	profiles := make([]*textutil.Profile, 0, len(titles))
	for _, title := range titles {
		if profile := textutil.NewProfile(title); profile != nil {
			profiles = append(profiles, profile)
		}
	}
	return profiles
}
