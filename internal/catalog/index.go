package catalog

import (
	"context"
	"sync"

	"log/slog"

	"anisync/internal/logging"
)

// SourceFetcher retrieves single source entries the bulk snapshot is missing.
// Implementations retry and rate-limit internally; a lookup that cannot
// produce a usable record reports ok=false rather than an error.
type SourceFetcher interface {
	// FetchSourceEntry returns the work for the given Annict id. In strict
	// mode (relaxed=false) records without a release date report not found;
	// relaxed mode returns them flagged Relaxed.
	FetchSourceEntry(ctx context.Context, id int, relaxed bool) (SourceEntry, bool, error)
}

// Index provides constant-time lookup over both catalog snapshots plus the
// entries memoized from fallback fetches and title searches. The maps built
// by New are read-only afterwards and read without locking; only the memo
// maps take the lock.
type Index struct {
	sources      map[int]SourceEntry
	targets      map[int]TargetEntry
	sourceBySite map[string]map[int]int // site name → external id → Annict id
	targetBySite map[string]map[int]int // site name → external id → AniList id

	fetcher SourceFetcher
	logger  *slog.Logger

	mu            sync.RWMutex
	fetchedSource map[int]SourceEntry
	fetchedBySite map[string]map[int]int
	addedTarget   map[int]TargetEntry
	addedBySite   map[string]map[int]int
}

// NewIndex builds the lookup maps in one pass per catalog. When a native id
// appears more than once in a snapshot the first row wins; secondary-index
// collisions keep the first target/source claiming the external id. A nil
// fetcher disables the fallback path.
func NewIndex(sources []SourceEntry, targets []TargetEntry, fetcher SourceFetcher, logger *slog.Logger) *Index {
	idx := &Index{
		sources:      make(map[int]SourceEntry, len(sources)),
		targets:      make(map[int]TargetEntry, len(targets)),
		sourceBySite: make(map[string]map[int]int),
		targetBySite: make(map[string]map[int]int),
		fetcher:      fetcher,
		logger:       logging.WithComponent(logger, "catalog"),
	}
	for _, entry := range sources {
		id := entry.ID()
		if id <= 0 {
			continue
		}
		if _, ok := idx.sources[id]; ok {
			continue
		}
		idx.sources[id] = entry
		for site, external := range entry.SiteIDs {
			if site == SiteAnnict || external <= 0 {
				continue
			}
			indexSite(idx.sourceBySite, site, external, id)
		}
	}
	for _, entry := range targets {
		if entry.ID <= 0 {
			continue
		}
		if _, ok := idx.targets[entry.ID]; ok {
			continue
		}
		idx.targets[entry.ID] = entry
		for site, external := range entry.ExternalIDs {
			if external <= 0 {
				continue
			}
			indexSite(idx.targetBySite, site, external, entry.ID)
		}
	}
	return idx
}

func indexSite(bySite map[string]map[int]int, site string, external, native int) {
	byID := bySite[site]
	if byID == nil {
		byID = make(map[int]int)
		bySite[site] = byID
	}
	if _, ok := byID[external]; !ok {
		byID[external] = native
	}
}

// SourceCount reports how many source entries are indexed, memoized fallback
// hits included.
func (x *Index) SourceCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.sources) + len(x.fetchedSource)
}

// TargetCount reports how many target entries are indexed, memoized search
// hits included.
func (x *Index) TargetCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.targets) + len(x.addedTarget)
}

// SourceByID looks up a source entry by its Annict id. Memoized fallback
// entries resolve the same way as snapshot rows.
func (x *Index) SourceByID(id int) (SourceEntry, bool) {
	if entry, ok := x.sources[id]; ok {
		return entry, true
	}
	x.mu.RLock()
	entry, ok := x.fetchedSource[id]
	x.mu.RUnlock()
	return entry, ok
}

// TargetByID looks up a target entry by its AniList id.
func (x *Index) TargetByID(id int) (TargetEntry, bool) {
	if entry, ok := x.targets[id]; ok {
		return entry, true
	}
	x.mu.RLock()
	entry, ok := x.addedTarget[id]
	x.mu.RUnlock()
	return entry, ok
}

// SourceByExternalID resolves a source entry through the secondary index,
// e.g. SourceByExternalID(SiteMAL, 5114).
func (x *Index) SourceByExternalID(site string, id int) (SourceEntry, bool) {
	if id <= 0 {
		return SourceEntry{}, false
	}
	if nativeID, ok := x.sourceBySite[site][id]; ok {
		return x.SourceByID(nativeID)
	}
	x.mu.RLock()
	nativeID, ok := x.fetchedBySite[site][id]
	x.mu.RUnlock()
	if !ok {
		return SourceEntry{}, false
	}
	return x.SourceByID(nativeID)
}

// TargetByExternalID resolves a target entry through the secondary index,
// e.g. TargetByExternalID(SiteMyAnimeList, 5114).
func (x *Index) TargetByExternalID(site string, id int) (TargetEntry, bool) {
	if id <= 0 {
		return TargetEntry{}, false
	}
	if nativeID, ok := x.targetBySite[site][id]; ok {
		return x.TargetByID(nativeID)
	}
	x.mu.RLock()
	nativeID, ok := x.addedBySite[site][id]
	x.mu.RUnlock()
	if !ok {
		return TargetEntry{}, false
	}
	return x.TargetByID(nativeID)
}

// EachSource calls fn for every indexed source entry, snapshot rows first and
// memoized fallback hits after. The memoized set is copied before fn runs so
// fn may look up or add entries freely; iteration order is unspecified.
func (x *Index) EachSource(fn func(SourceEntry)) {
	for _, entry := range x.sources {
		fn(entry)
	}
	x.mu.RLock()
	memo := make([]SourceEntry, 0, len(x.fetchedSource))
	for _, entry := range x.fetchedSource {
		memo = append(memo, entry)
	}
	x.mu.RUnlock()
	for _, entry := range memo {
		fn(entry)
	}
}

// EachTarget calls fn for every indexed target entry, snapshot rows first and
// memoized search hits after. The memoized set is copied before fn runs so
// fn may look up or add entries freely; iteration order is unspecified.
func (x *Index) EachTarget(fn func(TargetEntry)) {
	for _, entry := range x.targets {
		fn(entry)
	}
	x.mu.RLock()
	memo := make([]TargetEntry, 0, len(x.addedTarget))
	for _, entry := range x.addedTarget {
		memo = append(memo, entry)
	}
	x.mu.RUnlock()
	for _, entry := range memo {
		fn(entry)
	}
}

// FetchSource resolves a source entry, falling back to the remote catalog for
// ids missing from the bulk snapshot. Fallback hits are memoized so each id
// costs at most one remote call per run. Strict mode never yields a relaxed
// entry: callers that tolerate a missing release date ask for the relaxed
// variant explicitly.
func (x *Index) FetchSource(ctx context.Context, id int, relaxed bool) (SourceEntry, bool, error) {
	if id <= 0 {
		return SourceEntry{}, false, nil
	}
	if entry, ok := x.SourceByID(id); ok {
		if relaxed || !entry.Relaxed {
			return entry, true, nil
		}
	}
	if x.fetcher == nil {
		return SourceEntry{}, false, nil
	}
	entry, ok, err := x.fetcher.FetchSourceEntry(ctx, id, relaxed)
	if err != nil {
		return SourceEntry{}, false, err
	}
	if !ok {
		return SourceEntry{}, false, nil
	}
	if entry.StartDate.IsZero() {
		entry.Relaxed = true
		if !relaxed {
			return SourceEntry{}, false, nil
		}
	}
	if entry.SiteIDs == nil {
		entry.SiteIDs = map[string]int{SiteAnnict: id}
	} else if entry.SiteIDs[SiteAnnict] == 0 {
		entry.SiteIDs[SiteAnnict] = id
	}
	x.memoizeSource(id, entry)
	x.logger.Debug("fetched source entry",
		logging.Int("work_id", id),
		logging.String("title", entry.Title),
		logging.Bool("relaxed", entry.Relaxed))
	return entry, true, nil
}

func (x *Index) memoizeSource(id int, entry SourceEntry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.fetchedSource == nil {
		x.fetchedSource = make(map[int]SourceEntry)
	}
	existing, exists := x.fetchedSource[id]
	if exists && !(existing.Relaxed && !entry.Relaxed) {
		return
	}
	x.fetchedSource[id] = entry
	for site, external := range entry.SiteIDs {
		if site == SiteAnnict || external <= 0 {
			continue
		}
		if _, ok := x.sourceBySite[site][external]; ok {
			continue
		}
		if x.fetchedBySite == nil {
			x.fetchedBySite = make(map[string]map[int]int)
		}
		indexSite(x.fetchedBySite, site, external, id)
	}
}

// AddTarget memoizes a search hit so later lookups resolve without the
// network. Entries already indexed keep their existing values.
func (x *Index) AddTarget(entry TargetEntry) {
	if entry.ID <= 0 {
		return
	}
	if _, ok := x.targets[entry.ID]; ok {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.addedTarget == nil {
		x.addedTarget = make(map[int]TargetEntry)
	}
	if _, ok := x.addedTarget[entry.ID]; ok {
		return
	}
	x.addedTarget[entry.ID] = entry
	for site, external := range entry.ExternalIDs {
		if external <= 0 {
			continue
		}
		if _, ok := x.targetBySite[site][external]; ok {
			continue
		}
		if x.addedBySite == nil {
			x.addedBySite = make(map[string]map[int]int)
		}
		indexSite(x.addedBySite, site, external, entry.ID)
	}
}
