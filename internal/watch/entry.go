package watch

import "time"

// Platform names a service that can receive a write.
type Platform string

const (
	PlatformAnnict  Platform = "annict"
	PlatformAniList Platform = "anilist"
)

// Entry is one title's watch-state as reported by a platform. Entries are
// built fresh per run from the remote snapshots, mutated in place by the
// matcher (id fill) and the changelog generator (episode clamping, id and
// title back-fill), and discarded when the run ends.
type Entry struct {
	// AnnictID and AniListID are the native ids; MALID is the MyAnimeList
	// bridge id some entries carry. Zero means unknown.
	AnnictID  int
	AniListID int
	MALID     int

	// Title is best-effort display text, not an identity.
	Title string

	Status Status
	// Progress counts watched episodes.
	Progress int
	// Score uses the owning platform's scale. Zero means unset.
	Score float64
	// Comment is the free-text note attached to the entry, when supported.
	Comment string

	UpdatedAt time.Time
}

// IDFor returns the entry's id in the given platform's native scheme.
func (e *Entry) IDFor(platform Platform) int {
	switch platform {
	case PlatformAnnict:
		return e.AnnictID
	case PlatformAniList:
		return e.AniListID
	default:
		return 0
	}
}

// SetIDFor records the entry's id in the given platform's native scheme.
func (e *Entry) SetIDFor(platform Platform, id int) {
	switch platform {
	case PlatformAnnict:
		e.AnnictID = id
	case PlatformAniList:
		e.AniListID = id
	}
}

// HasCounterpartID reports whether the entry can be located in the given
// platform's collection at all, directly or through the MAL bridge.
func (e *Entry) HasCounterpartID(platform Platform) bool {
	return e.IDFor(platform) > 0 || e.MALID > 0
}

// Instruction is one unit of "write this watch-state to this platform".
// Produced by the changelog generator, consumed exactly once by the apply
// step.
type Instruction struct {
	// Before is the receiving platform's snapshot prior to the write; nil
	// for a pure create.
	Before *Entry
	After  Entry
	// Platform names the service that receives the write.
	Platform Platform
}
