package catalog

import (
	"sort"
	"strings"
	"time"
)

// Site names used in the per-entry id maps. Annict spells its own pair and the
// MyAnimeList pair in lowercase; AniList's external-site map uses the site's
// display name.
const (
	SiteAnnict      = "annict"
	SiteMAL         = "mal"
	SiteMyAnimeList = "MyAnimeList"
)

// SourceKind classifies an Annict work's media type.
type SourceKind int

const (
	SourceKindUnknown SourceKind = iota
	SourceKindMovie
	SourceKindOVA
	SourceKindTV
	SourceKindWeb
)

func (k SourceKind) String() string {
	switch k {
	case SourceKindMovie:
		return "movie"
	case SourceKindOVA:
		return "ova"
	case SourceKindTV:
		return "tv"
	case SourceKindWeb:
		return "web"
	default:
		return "unknown"
	}
}

// ParseSourceKind maps an Annict media value onto a SourceKind. Values the
// catalog does not model ("other", "") come back unknown.
func ParseSourceKind(value string) SourceKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie":
		return SourceKindMovie
	case "ova":
		return SourceKindOVA
	case "tv":
		return SourceKindTV
	case "web":
		return SourceKindWeb
	default:
		return SourceKindUnknown
	}
}

// TargetKind classifies an AniList media format.
type TargetKind int

const (
	TargetKindUnknown TargetKind = iota
	TargetKindMovie
	TargetKindONA
	TargetKindOVA
	TargetKindSpecial
	TargetKindTV
)

func (k TargetKind) String() string {
	switch k {
	case TargetKindMovie:
		return "movie"
	case TargetKindONA:
		return "ona"
	case TargetKindOVA:
		return "ova"
	case TargetKindSpecial:
		return "special"
	case TargetKindTV:
		return "tv"
	default:
		return "unknown"
	}
}

// ParseTargetKind maps an AniList format value onto a TargetKind. TV_SHORT
// folds into tv; formats outside the matching matrix (MUSIC) come back
// unknown, which skips the format check.
func ParseTargetKind(value string) TargetKind {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "MOVIE":
		return TargetKindMovie
	case "ONA":
		return TargetKindONA
	case "OVA":
		return TargetKindOVA
	case "SPECIAL":
		return TargetKindSpecial
	case "TV", "TV_SHORT":
		return TargetKindTV
	default:
		return TargetKindUnknown
	}
}

// Quarter identifies the airing season within a year.
type Quarter int

const (
	QuarterUndefined Quarter = iota
	QuarterWinter
	QuarterSpring
	QuarterSummer
	QuarterFall
)

func (q Quarter) String() string {
	switch q {
	case QuarterWinter:
		return "winter"
	case QuarterSpring:
		return "spring"
	case QuarterSummer:
		return "summer"
	case QuarterFall:
		return "fall"
	default:
		return "undefined"
	}
}

// ParseQuarter maps an AniList season value onto a Quarter.
func ParseQuarter(value string) Quarter {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "WINTER":
		return QuarterWinter
	case "SPRING":
		return QuarterSpring
	case "SUMMER":
		return QuarterSummer
	case "FALL":
		return QuarterFall
	default:
		return QuarterUndefined
	}
}

// Season describes when a target entry aired. Year 0 and QuarterUndefined
// both mean the catalog does not know.
type Season struct {
	Year    int
	Quarter Quarter
}

// SourceEntry is one Annict work, from the bulk library snapshot or from a
// fallback fetch. Relaxed entries were fetched without a release date and
// carry too little metadata for strict comparison.
type SourceEntry struct {
	Title        string
	AltTitles    map[string]string // language tag ("en", "ja", "x-jat") to title
	Kind         SourceKind
	StartDate    time.Time // zero when Annict has no release date
	EpisodeCount int       // 0 when unknown
	SiteIDs      map[string]int
	Relaxed      bool
}

// ID returns the entry's Annict id, or 0 when the pair is missing.
func (e SourceEntry) ID() int {
	return e.SiteIDs[SiteAnnict]
}

// MALID returns the MyAnimeList id Annict advertises for the work, or 0.
func (e SourceEntry) MALID() int {
	return e.SiteIDs[SiteMAL]
}

// StartYear returns the release year, or 0 when the date is unknown.
func (e SourceEntry) StartYear() int {
	if e.StartDate.IsZero() {
		return 0
	}
	return e.StartDate.Year()
}

// StartMonth returns the release month, or 0 when the date is unknown.
func (e SourceEntry) StartMonth() time.Month {
	if e.StartDate.IsZero() {
		return 0
	}
	return e.StartDate.Month()
}

// Titles returns the main title followed by the alternates in language-tag
// order, skipping blanks. The order is stable so candidate scoring stays
// reproducible between runs.
func (e SourceEntry) Titles() []string {
	titles := make([]string, 0, len(e.AltTitles)+1)
	if strings.TrimSpace(e.Title) != "" {
		titles = append(titles, e.Title)
	}
	tags := make([]string, 0, len(e.AltTitles))
	for tag := range e.AltTitles {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		if title := strings.TrimSpace(e.AltTitles[tag]); title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

// TargetEntry is one AniList media record, from the bulk library snapshot or
// memoized from a title search.
type TargetEntry struct {
	ID           int
	Title        string
	Synonyms     []string
	Kind         TargetKind
	EpisodeCount int // 0 when unknown
	Season       Season
	ExternalIDs  map[string]int // external-site name to native id, sparse
}

// MALID returns the MyAnimeList id AniList carries for the media, or 0.
func (e TargetEntry) MALID() int {
	return e.ExternalIDs[SiteMyAnimeList]
}

// Titles returns the title followed by its synonyms, skipping blanks.
func (e TargetEntry) Titles() []string {
	titles := make([]string, 0, len(e.Synonyms)+1)
	if strings.TrimSpace(e.Title) != "" {
		titles = append(titles, e.Title)
	}
	for _, synonym := range e.Synonyms {
		if strings.TrimSpace(synonym) != "" {
			titles = append(titles, synonym)
		}
	}
	return titles
}
