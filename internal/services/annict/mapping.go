package annict

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"anisync/internal/catalog"
	"anisync/internal/watch"
)

// Annict status kinds, in the order the library fetch walks them.
var libraryStatusKinds = []string{
	"watching",
	"watched",
	"on_hold",
	"stop_watching",
	"wanna_watch",
}

var statusByKind = map[string]watch.Status{
	"watching":      watch.StatusWatching,
	"watched":       watch.StatusCompleted,
	"on_hold":       watch.StatusOnHold,
	"stop_watching": watch.StatusDropped,
	"wanna_watch":   watch.StatusPlanToWatch,
}

// kindFor maps a canonical status onto Annict's enum for status writes.
func kindFor(status watch.Status) (string, bool) {
	for kind, mapped := range statusByKind {
		if mapped == status {
			return kind, true
		}
	}
	return "", false
}

// flexibleID tolerates the API sending ids as strings, numbers, or null.
// Anything unparseable decodes to zero; the bridge id is optional data.
type flexibleID int

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		value, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexibleID(value)
		return nil
	}
	var value int
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return err
	}
	*f = flexibleID(value)
	return nil
}

type workPayload struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	TitleKana     string     `json:"title_kana"`
	TitleEn       string     `json:"title_en"`
	Media         string     `json:"media"`
	ReleasedOn    string     `json:"released_on"`
	EpisodesCount int        `json:"episodes_count"`
	MALAnimeID    flexibleID `json:"mal_anime_id"`
}

type worksPage struct {
	Works      []workPayload `json:"works"`
	TotalCount int           `json:"total_count"`
	NextPage   *int          `json:"next_page"`
}

func (w workPayload) sourceEntry() catalog.SourceEntry {
	entry := catalog.SourceEntry{
		Title:        strings.TrimSpace(w.Title),
		Kind:         catalog.ParseSourceKind(w.Media),
		EpisodeCount: w.EpisodesCount,
		SiteIDs:      map[string]int{catalog.SiteAnnict: w.ID},
	}
	if malID := int(w.MALAnimeID); malID > 0 {
		entry.SiteIDs[catalog.SiteMAL] = malID
	}
	if released := strings.TrimSpace(w.ReleasedOn); released != "" {
		if when, err := time.Parse("2006-01-02", released); err == nil {
			entry.StartDate = when
		}
	}
	alternates := make(map[string]string, 2)
	if kana := strings.TrimSpace(w.TitleKana); kana != "" {
		alternates["ja-Hrkt"] = kana
	}
	if english := strings.TrimSpace(w.TitleEn); english != "" {
		alternates["en"] = english
	}
	if len(alternates) > 0 {
		entry.AltTitles = alternates
	}
	return entry
}

// watchEntry builds the user-facing state for one work. Annict exposes no
// watched-episode counter over this API, so progress is the episode total
// for finished titles and zero otherwise; zero progress downstream means
// "unknown", not "rewound". Timestamps stay zero for the same reason, which
// makes the source side lose bidirectional timestamp ties.
func (w workPayload) watchEntry(status watch.Status) watch.Entry {
	entry := watch.Entry{
		AnnictID: w.ID,
		MALID:    int(w.MALAnimeID),
		Title:    strings.TrimSpace(w.Title),
		Status:   status,
	}
	if status == watch.StatusCompleted {
		entry.Progress = w.EpisodesCount
	}
	return entry
}
