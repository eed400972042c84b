package testsupport

import (
	"testing"
	"time"

	"anisync/internal/catalog"
	"anisync/internal/watch"
)

// Day parses a YYYY-MM-DD date for fixture timestamps.
func Day(t testing.TB, value string) time.Time {
	t.Helper()

	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse day %q: %v", value, err)
	}
	return parsed
}

// SourceRecord builds an Annict catalog record with the usual id pairs.
func SourceRecord(annictID, malID int, title string, episodes int) catalog.SourceEntry {
	ids := map[string]int{catalog.SiteAnnict: annictID}
	if malID > 0 {
		ids[catalog.SiteMAL] = malID
	}
	return catalog.SourceEntry{
		Title:        title,
		Kind:         catalog.SourceKindTV,
		StartDate:    time.Date(2021, time.January, 15, 0, 0, 0, 0, time.UTC),
		EpisodeCount: episodes,
		SiteIDs:      ids,
	}
}

// TargetRecord builds an AniList catalog record with the usual id pairs.
func TargetRecord(anilistID, malID int, title string, episodes int) catalog.TargetEntry {
	entry := catalog.TargetEntry{
		ID:           anilistID,
		Title:        title,
		Kind:         catalog.TargetKindTV,
		EpisodeCount: episodes,
		Season:       catalog.Season{Year: 2021, Quarter: catalog.QuarterWinter},
	}
	if malID > 0 {
		entry.ExternalIDs = map[string]int{catalog.SiteMyAnimeList: malID}
	}
	return entry
}

// SourceState builds an Annict-side watch entry.
func SourceState(annictID, malID int, title string, status watch.Status) watch.Entry {
	return watch.Entry{
		AnnictID: annictID,
		MALID:    malID,
		Title:    title,
		Status:   status,
	}
}

// TargetState builds an AniList-side watch entry.
func TargetState(anilistID, malID int, title string, status watch.Status) watch.Entry {
	return watch.Entry{
		AniListID: anilistID,
		MALID:     malID,
		Title:     title,
		Status:    status,
	}
}
