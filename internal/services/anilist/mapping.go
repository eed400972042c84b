package anilist

import (
	"strings"
	"time"

	"anisync/internal/catalog"
	"anisync/internal/watch"
)

var statusByList = map[string]watch.Status{
	"CURRENT":   watch.StatusWatching,
	"REPEATING": watch.StatusWatching,
	"COMPLETED": watch.StatusCompleted,
	"PAUSED":    watch.StatusOnHold,
	"DROPPED":   watch.StatusDropped,
	"PLANNING":  watch.StatusPlanToWatch,
}

var listByStatus = map[watch.Status]string{
	watch.StatusWatching:    "CURRENT",
	watch.StatusCompleted:   "COMPLETED",
	watch.StatusOnHold:      "PAUSED",
	watch.StatusDropped:     "DROPPED",
	watch.StatusPlanToWatch: "PLANNING",
}

type mediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

type mediaPayload struct {
	ID         int        `json:"id"`
	IDMal      int        `json:"idMal"`
	Title      mediaTitle `json:"title"`
	Synonyms   []string   `json:"synonyms"`
	Format     string     `json:"format"`
	Episodes   int        `json:"episodes"`
	Season     string     `json:"season"`
	SeasonYear int        `json:"seasonYear"`
}

type listEntryPayload struct {
	Status    string       `json:"status"`
	Score     float64      `json:"score"`
	Progress  int          `json:"progress"`
	Notes     string       `json:"notes"`
	UpdatedAt int64        `json:"updatedAt"`
	Media     mediaPayload `json:"media"`
}

// targetEntry flattens an AniList media record into the catalog shape. The
// romaji title leads; english, native, and declared synonyms become the
// synonym list, deduplicated.
func (m mediaPayload) targetEntry() catalog.TargetEntry {
	title := firstNonEmpty(m.Title.Romaji, m.Title.English, m.Title.Native)
	entry := catalog.TargetEntry{
		ID:           m.ID,
		Title:        title,
		Kind:         catalog.ParseTargetKind(m.Format),
		EpisodeCount: m.Episodes,
		Season: catalog.Season{
			Year:    m.SeasonYear,
			Quarter: catalog.ParseQuarter(m.Season),
		},
	}
	if m.IDMal > 0 {
		entry.ExternalIDs = map[string]int{catalog.SiteMyAnimeList: m.IDMal}
	}
	seen := map[string]struct{}{title: {}}
	for _, synonym := range append([]string{m.Title.English, m.Title.Native}, m.Synonyms...) {
		synonym = strings.TrimSpace(synonym)
		if synonym == "" {
			continue
		}
		if _, dup := seen[synonym]; dup {
			continue
		}
		seen[synonym] = struct{}{}
		entry.Synonyms = append(entry.Synonyms, synonym)
	}
	return entry
}

func (e listEntryPayload) watchEntry() watch.Entry {
	entry := watch.Entry{
		AniListID: e.Media.ID,
		MALID:     e.Media.IDMal,
		Title:     firstNonEmpty(e.Media.Title.Romaji, e.Media.Title.English, e.Media.Title.Native),
		Status:    statusFor(e.Status),
		Progress:  e.Progress,
		Score:     e.Score,
		Comment:   strings.TrimSpace(e.Notes),
	}
	if e.UpdatedAt > 0 {
		entry.UpdatedAt = time.Unix(e.UpdatedAt, 0).UTC()
	}
	return entry
}

// statusFor maps an AniList list status onto the canonical enum. REPEATING
// is a rewatch in progress, which the engine treats as watching.
func statusFor(status string) watch.Status {
	if mapped, ok := statusByList[strings.ToUpper(strings.TrimSpace(status))]; ok {
		return mapped
	}
	return watch.StatusUnknown
}

// listFor maps a canonical status onto AniList's enum for writes.
func listFor(status watch.Status) (string, bool) {
	list, ok := listByStatus[status]
	return list, ok
}

// scoreRaw converts the canonical 0-10 score to AniList's 100-point raw
// scale, which writes the same regardless of the user's display format.
func scoreRaw(score float64) int {
	if score <= 0 {
		return 0
	}
	if score > 10 {
		score = 10
	}
	return int(score*10 + 0.5)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
