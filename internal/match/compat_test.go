package match

import (
	"fmt"
	"testing"
	"time"

	"anisync/internal/catalog"
)

func seasonSource(month time.Month) catalog.SourceEntry {
	return catalog.SourceEntry{
		Kind:      catalog.SourceKindTV,
		StartDate: time.Date(2021, month, 15, 0, 0, 0, 0, time.UTC),
		SiteIDs:   map[string]int{catalog.SiteAnnict: 1},
	}
}

func seasonTarget(quarter catalog.Quarter) catalog.TargetEntry {
	return catalog.TargetEntry{
		ID:     1,
		Kind:   catalog.TargetKindTV,
		Season: catalog.Season{Year: 2021, Quarter: quarter},
	}
}

func TestSeasonTableAllMonths(t *testing.T) {
	canonical := map[time.Month]catalog.Quarter{
		time.January:   catalog.QuarterWinter,
		time.February:  catalog.QuarterWinter,
		time.March:     catalog.QuarterWinter,
		time.April:     catalog.QuarterSpring,
		time.May:       catalog.QuarterSpring,
		time.June:      catalog.QuarterSpring,
		time.July:      catalog.QuarterSummer,
		time.August:    catalog.QuarterSummer,
		time.September: catalog.QuarterSummer,
		time.October:   catalog.QuarterFall,
		time.November:  catalog.QuarterFall,
		time.December:  catalog.QuarterFall,
	}
	following := map[time.Month]catalog.Quarter{
		time.March:     catalog.QuarterSpring,
		time.June:      catalog.QuarterSummer,
		time.September: catalog.QuarterFall,
		time.December:  catalog.QuarterWinter,
	}

	for month := time.January; month <= time.December; month++ {
		for _, strict := range []bool{false, true} {
			name := fmt.Sprintf("%s strict=%v", month, strict)
			t.Run(name, func(t *testing.T) {
				source := seasonSource(month)

				if !seasonCompatible(source, seasonTarget(canonical[month]), strict) {
					t.Fatalf("canonical quarter %v rejected", canonical[month])
				}

				if next, boundary := following[month]; boundary {
					got := seasonCompatible(source, seasonTarget(next), strict)
					if want := !strict; got != want {
						t.Fatalf("following quarter %v = %v, want %v", next, got, want)
					}
				}

				// The quarter preceding the canonical one is never reachable
				// from this month in either mode.
				previous := nextQuarter(nextQuarter(nextQuarter(canonical[month])))
				if seasonCompatible(source, seasonTarget(previous), strict) {
					t.Fatalf("previous quarter %v accepted", previous)
				}
			})
		}
	}
}

func TestSeasonUndefinedQuarterSkips(t *testing.T) {
	source := seasonSource(time.October)
	target := seasonTarget(catalog.QuarterUndefined)
	if !seasonCompatible(source, target, false) || !seasonCompatible(source, target, true) {
		t.Fatal("undefined target quarter did not skip the season check")
	}
}

func TestSeasonMissingMonth(t *testing.T) {
	source := catalog.SourceEntry{Kind: catalog.SourceKindTV}
	target := seasonTarget(catalog.QuarterFall)
	if !seasonCompatible(source, target, false) {
		t.Fatal("missing start month rejected in non-strict mode")
	}
	if seasonCompatible(source, target, true) {
		t.Fatal("missing start month accepted in strict mode")
	}
}

func TestYearGate(t *testing.T) {
	cases := []struct {
		name       string
		sourceYear int
		targetYear int
		strict     bool
		want       bool
	}{
		{"equal years", 2021, 2021, true, true},
		{"different years", 2021, 2020, false, false},
		{"different years strict", 2021, 2020, true, false},
		{"missing source year", 0, 2021, false, true},
		{"missing source year strict", 0, 2021, true, false},
		{"missing target year", 2021, 0, false, true},
		{"missing target year strict", 2021, 0, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := catalog.SourceEntry{}
			if tc.sourceYear > 0 {
				source.StartDate = time.Date(tc.sourceYear, time.October, 5, 0, 0, 0, 0, time.UTC)
			}
			target := catalog.TargetEntry{Season: catalog.Season{Year: tc.targetYear}}
			if got := yearCompatible(source, target, tc.strict); got != tc.want {
				t.Fatalf("yearCompatible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestKindMatrix(t *testing.T) {
	cases := []struct {
		source catalog.SourceKind
		target catalog.TargetKind
		want   bool
	}{
		{catalog.SourceKindTV, catalog.TargetKindTV, true},
		{catalog.SourceKindTV, catalog.TargetKindMovie, false},
		{catalog.SourceKindWeb, catalog.TargetKindONA, true},
		{catalog.SourceKindWeb, catalog.TargetKindTV, false},
		{catalog.SourceKindOVA, catalog.TargetKindOVA, true},
		{catalog.SourceKindOVA, catalog.TargetKindSpecial, true},
		{catalog.SourceKindOVA, catalog.TargetKindTV, false},
		{catalog.SourceKindMovie, catalog.TargetKindMovie, true},
		{catalog.SourceKindMovie, catalog.TargetKindSpecial, false},
		{catalog.SourceKindUnknown, catalog.TargetKindTV, false},
	}
	for _, tc := range cases {
		name := fmt.Sprintf("%v-%v", tc.source, tc.target)
		t.Run(name, func(t *testing.T) {
			if got := kindMatches(tc.source, tc.target); got != tc.want {
				t.Fatalf("kindMatches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFormatCompatible(t *testing.T) {
	cases := []struct {
		name           string
		sourceKind     catalog.SourceKind
		targetKind     catalog.TargetKind
		sourceEpisodes int
		targetEpisodes int
		strict         bool
		want           bool
	}{
		{"unknown target skips", catalog.SourceKindTV, catalog.TargetKindUnknown, 0, 0, true, true},
		{"matrix match", catalog.SourceKindTV, catalog.TargetKindTV, 0, 0, true, true},
		{"mismatch equal counts", catalog.SourceKindWeb, catalog.TargetKindTV, 12, 12, false, true},
		{"mismatch equal counts strict", catalog.SourceKindWeb, catalog.TargetKindTV, 12, 12, true, false},
		{"mismatch different counts", catalog.SourceKindWeb, catalog.TargetKindTV, 12, 24, false, false},
		{"mismatch unknown counts", catalog.SourceKindWeb, catalog.TargetKindTV, 0, 0, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := catalog.SourceEntry{Kind: tc.sourceKind, EpisodeCount: tc.sourceEpisodes}
			target := catalog.TargetEntry{Kind: tc.targetKind, EpisodeCount: tc.targetEpisodes}
			if got := formatCompatible(source, target, tc.strict); got != tc.want {
				t.Fatalf("formatCompatible = %v, want %v", got, tc.want)
			}
		})
	}
}
