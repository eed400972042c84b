package match

import (
	"time"

	"anisync/internal/catalog"
)

// compatible gates a candidate pair on metadata agreement. Strict mode
// requires exact evidence on both sides and is applied when the textual
// match alone is too weak to carry the decision.
func compatible(source catalog.SourceEntry, target catalog.TargetEntry, strict bool) bool {
	return yearCompatible(source, target, strict) &&
		seasonCompatible(source, target, strict) &&
		formatCompatible(source, target, strict)
}

func yearCompatible(source catalog.SourceEntry, target catalog.TargetEntry, strict bool) bool {
	sourceYear := source.StartYear()
	targetYear := target.Season.Year
	if sourceYear == 0 || targetYear == 0 {
		return !strict
	}
	return sourceYear == targetYear
}

// seasonCompatible compares the source start month against the target's
// airing quarter. A month on a quarter edge (3, 6, 9, 12) also accepts the
// following quarter, since the catalogs regularly disagree about which
// season an early or late premiere belongs to. Strict mode accepts the
// canonical quarter only.
func seasonCompatible(source catalog.SourceEntry, target catalog.TargetEntry, strict bool) bool {
	quarter := target.Season.Quarter
	if quarter == catalog.QuarterUndefined {
		return true
	}
	month := source.StartMonth()
	if month == 0 {
		return !strict
	}
	canonical := quarterOf(month)
	if canonical == quarter {
		return true
	}
	if strict {
		return false
	}
	switch month {
	case time.March, time.June, time.September, time.December:
		return nextQuarter(canonical) == quarter
	default:
		return false
	}
}

// formatCompatible checks the media-kind pairing: tv with tv, web with ona,
// ova with ova or special, movie with movie. An unknown target kind skips
// the check. Any other pairing is a mismatch, rescued only by equal known
// episode counts and never in strict mode.
func formatCompatible(source catalog.SourceEntry, target catalog.TargetEntry, strict bool) bool {
	if target.Kind == catalog.TargetKindUnknown {
		return true
	}
	if kindMatches(source.Kind, target.Kind) {
		return true
	}
	if strict {
		return false
	}
	return source.EpisodeCount > 0 && source.EpisodeCount == target.EpisodeCount
}

func kindMatches(source catalog.SourceKind, target catalog.TargetKind) bool {
	switch source {
	case catalog.SourceKindTV:
		return target == catalog.TargetKindTV
	case catalog.SourceKindWeb:
		return target == catalog.TargetKindONA
	case catalog.SourceKindOVA:
		return target == catalog.TargetKindOVA || target == catalog.TargetKindSpecial
	case catalog.SourceKindMovie:
		return target == catalog.TargetKindMovie
	default:
		return false
	}
}

// quarterOf maps a start month onto its canonical airing quarter: 1-3
// winter, 4-6 spring, 7-9 summer, 10-12 fall.
func quarterOf(month time.Month) catalog.Quarter {
	switch {
	case month <= time.March:
		return catalog.QuarterWinter
	case month <= time.June:
		return catalog.QuarterSpring
	case month <= time.September:
		return catalog.QuarterSummer
	default:
		return catalog.QuarterFall
	}
}

func nextQuarter(q catalog.Quarter) catalog.Quarter {
	switch q {
	case catalog.QuarterWinter:
		return catalog.QuarterSpring
	case catalog.QuarterSpring:
		return catalog.QuarterSummer
	case catalog.QuarterSummer:
		return catalog.QuarterFall
	case catalog.QuarterFall:
		return catalog.QuarterWinter
	default:
		return catalog.QuarterUndefined
	}
}
