package changelog

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"anisync/internal/logging"
	"anisync/internal/watch"
)

// stubTotals answers episode totals by AniList id.
type stubTotals map[int]int

func (s stubTotals) EpisodeTotal(_ context.Context, entry watch.Entry) int {
	return s[entry.AniListID]
}

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func pair(annictID, anilistID int, title string, status watch.Status, progress int) (watch.Entry, watch.Entry) {
	source := watch.Entry{
		AnnictID:  annictID,
		AniListID: anilistID,
		Title:     title,
		Status:    status,
		Progress:  progress,
	}
	target := watch.Entry{
		AnnictID:  annictID,
		AniListID: anilistID,
		Title:     title,
		Status:    status,
		Progress:  progress,
	}
	return source, target
}

func TestGenerateSkipsUnresolvedEntries(t *testing.T) {
	gen := New(nil, false, logging.NewNop())

	from := []watch.Entry{
		{AnnictID: 1, Title: "No Counterpart ID", Status: watch.StatusWatching, Progress: 3},
	}
	got := gen.Generate(context.Background(), from, nil, watch.PlatformAniList)
	if len(got) != 0 {
		t.Fatalf("Generate() = %d instructions, want 0 for unresolved entry", len(got))
	}
}

func TestGenerateClampsProgress(t *testing.T) {
	tests := []struct {
		name     string
		status   watch.Status
		progress int
		total    int
		want     int
	}{
		{"completed overflow pulls back to total", watch.StatusCompleted, 999, 12, 12},
		{"completed below total raises to total", watch.StatusCompleted, 10, 12, 12},
		{"watching overflow pulls back to total", watch.StatusWatching, 15, 12, 12},
		{"watching within total untouched", watch.StatusWatching, 10, 12, 10},
		{"unknown total never clamps", watch.StatusCompleted, 999, 0, 999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := stubTotals{}
			if tt.total > 0 {
				totals[501] = tt.total
			}
			gen := New(totals, false, logging.NewNop())

			from := []watch.Entry{{
				AnnictID:  1,
				AniListID: 501,
				Title:     "Clamp Case",
				Status:    tt.status,
				Progress:  tt.progress,
			}}
			got := gen.Generate(context.Background(), from, nil, watch.PlatformAniList)
			if len(got) != 1 {
				t.Fatalf("Generate() = %d instructions, want 1", len(got))
			}
			if got[0].After.Progress != tt.want {
				t.Errorf("After.Progress = %d, want %d", got[0].After.Progress, tt.want)
			}
		})
	}
}

func TestGenerateNoOpLaw(t *testing.T) {
	source1, target1 := pair(1, 501, "Settled Title", watch.StatusCompleted, 12)
	source2, target2 := pair(2, 502, "Another Settled Title", watch.StatusWatching, 4)
	gen := New(stubTotals{501: 12, 502: 24}, true, logging.NewNop())

	got := gen.Generate(context.Background(), []watch.Entry{source1, source2}, []watch.Entry{target1, target2}, watch.PlatformAniList)
	if len(got) != 0 {
		t.Fatalf("Generate() = %d instructions, want 0 for identical collections", len(got))
	}
}

func TestGeneratePureCreate(t *testing.T) {
	gen := New(nil, false, logging.NewNop())

	from := []watch.Entry{{
		AnnictID:  1,
		AniListID: 501,
		Title:     "Only On Source",
		Status:    watch.StatusWatching,
		Progress:  3,
	}}
	got := gen.Generate(context.Background(), from, nil, watch.PlatformAniList)
	if len(got) != 1 {
		t.Fatalf("Generate() = %d instructions, want 1", len(got))
	}
	if got[0].Before != nil {
		t.Errorf("Before = %+v, want nil for a pure create", got[0].Before)
	}
	if got[0].Platform != watch.PlatformAniList {
		t.Errorf("Platform = %q, want %q", got[0].Platform, watch.PlatformAniList)
	}
	if got[0].After.AniListID != 501 {
		t.Errorf("After.AniListID = %d, want 501", got[0].After.AniListID)
	}
}

func TestGenerateLocatesThroughMALBridge(t *testing.T) {
	gen := New(nil, false, logging.NewNop())

	from := []watch.Entry{{
		AnnictID: 1,
		MALID:    900,
		Title:    "Bridge Title",
		Status:   watch.StatusWatching,
		Progress: 5,
	}}
	to := []watch.Entry{{
		AniListID: 501,
		MALID:     900,
		Title:     "Bridge Title",
		Status:    watch.StatusWatching,
		Progress:  2,
	}}
	got := gen.Generate(context.Background(), from, to, watch.PlatformAniList)
	if len(got) != 1 {
		t.Fatalf("Generate() = %d instructions, want 1", len(got))
	}
	if got[0].Before == nil {
		t.Fatal("Before = nil, want the located counterpart")
	}
	if got[0].Before.Progress != 2 {
		t.Errorf("Before.Progress = %d, want 2", got[0].Before.Progress)
	}
	if got[0].After.AniListID != 501 {
		t.Errorf("After.AniListID = %d, want 501 after back-fill", got[0].After.AniListID)
	}
}

func TestGenerateBackfillAloneIsNotAChange(t *testing.T) {
	gen := New(nil, true, logging.NewNop())

	from := []watch.Entry{{
		AnnictID:  1,
		AniListID: 501,
		MALID:     900,
		Title:     "Shared Title",
		Status:    watch.StatusCompleted,
		Progress:  12,
	}}
	to := []watch.Entry{{
		AniListID: 501,
		Status:    watch.StatusCompleted,
		Progress:  12,
	}}
	got := gen.Generate(context.Background(), from, to, watch.PlatformAniList)
	if len(got) != 0 {
		t.Fatalf("Generate() = %d instructions, want 0 when only ids and titles were missing", len(got))
	}
	if to[0].AnnictID != 1 || to[0].MALID != 900 {
		t.Errorf("counterpart ids = (%d, %d), want back-filled (1, 900)", to[0].AnnictID, to[0].MALID)
	}
	if to[0].Title != "Shared Title" {
		t.Errorf("counterpart title = %q, want back-filled %q", to[0].Title, "Shared Title")
	}
}

func TestGenerateFieldTriggers(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(source, target *watch.Entry)
		syncComments bool
		want         int
	}{
		{
			name:   "status difference fires",
			mutate: func(source, _ *watch.Entry) { source.Status = watch.StatusCompleted },
			want:   1,
		},
		{
			name:   "progress difference fires",
			mutate: func(source, _ *watch.Entry) { source.Progress = 9 },
			want:   1,
		},
		{
			name:   "zero progress never rewinds a positive count",
			mutate: func(source, _ *watch.Entry) { source.Progress = 0 },
			want:   0,
		},
		{
			name: "score difference fires",
			mutate: func(source, target *watch.Entry) {
				source.Score = 8
				target.Score = 6
			},
			want: 1,
		},
		{
			name:   "unset score never overwrites a set one",
			mutate: func(_, target *watch.Entry) { target.Score = 7 },
			want:   0,
		},
		{
			name:         "comment difference fires when enabled",
			mutate:       func(source, _ *watch.Entry) { source.Comment = "rewatched, still great" },
			syncComments: true,
			want:         1,
		},
		{
			name:   "comment difference ignored when disabled",
			mutate: func(source, _ *watch.Entry) { source.Comment = "rewatched, still great" },
			want:   0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, target := pair(1, 501, "Field Case", watch.StatusWatching, 4)
			tt.mutate(&source, &target)
			gen := New(nil, tt.syncComments, logging.NewNop())

			got := gen.Generate(context.Background(), []watch.Entry{source}, []watch.Entry{target}, watch.PlatformAniList)
			if len(got) != tt.want {
				t.Fatalf("Generate() = %d instructions, want %d", len(got), tt.want)
			}
		})
	}
}

func TestGenerateOutputIsReproducible(t *testing.T) {
	build := func() ([]watch.Entry, []watch.Entry) {
		source1, target1 := pair(1, 501, "First Title", watch.StatusWatching, 4)
		source1.Progress = 5
		source2, target2 := pair(2, 502, "Second Title", watch.StatusWatching, 8)
		source2.Status = watch.StatusCompleted
		source3 := watch.Entry{AnnictID: 3, AniListID: 503, Title: "Third Title", Status: watch.StatusPlanToWatch}
		return []watch.Entry{source1, source2, source3}, []watch.Entry{target1, target2}
	}
	gen := New(stubTotals{502: 8}, true, logging.NewNop())

	fromA, toA := build()
	fromB, toB := build()
	first := gen.Generate(context.Background(), fromA, toA, watch.PlatformAniList)
	second := gen.Generate(context.Background(), fromB, toB, watch.PlatformAniList)

	if len(first) != 3 {
		t.Fatalf("Generate() = %d instructions, want 3", len(first))
	}
	for i, want := range []int{1, 2, 3} {
		if first[i].After.AnnictID != want {
			t.Errorf("instruction %d has AnnictID %d, want input order %d", i, first[i].After.AnnictID, want)
		}
	}
	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first run: %v", err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second run: %v", err)
	}
	if !bytes.Equal(firstJSON, secondJSON) {
		t.Errorf("two runs over identical input produced different instruction lists:\n%s\n%s", firstJSON, secondJSON)
	}
}

func TestBidirectionalNewerSideWins(t *testing.T) {
	source := watch.Entry{
		AnnictID:  1,
		AniListID: 501,
		Title:     "Contested Title",
		Status:    watch.StatusCompleted,
		Progress:  12,
		Score:     7,
		UpdatedAt: day("2024-01-05"),
	}
	target := watch.Entry{
		AnnictID:  1,
		AniListID: 501,
		Title:     "Contested Title",
		Status:    watch.StatusCompleted,
		Progress:  12,
		Score:     8,
		UpdatedAt: day("2024-01-10"),
	}
	gen := New(nil, false, logging.NewNop())

	got := gen.GenerateBidirectional(context.Background(), []watch.Entry{source}, []watch.Entry{target})
	if len(got) != 1 {
		t.Fatalf("GenerateBidirectional() = %d instructions, want 1 after conflict resolution", len(got))
	}
	if got[0].Platform != watch.PlatformAnnict {
		t.Errorf("Platform = %q, want %q (newer target side wins)", got[0].Platform, watch.PlatformAnnict)
	}
	if got[0].After.Score != 8 {
		t.Errorf("After.Score = %v, want the newer side's 8", got[0].After.Score)
	}
}

func TestBidirectionalTiePrefersForward(t *testing.T) {
	when := day("2024-01-05")
	source := watch.Entry{
		AnnictID:  1,
		AniListID: 501,
		Title:     "Tied Title",
		Status:    watch.StatusWatching,
		Progress:  6,
		UpdatedAt: when,
	}
	target := watch.Entry{
		AnnictID:  1,
		AniListID: 501,
		Title:     "Tied Title",
		Status:    watch.StatusWatching,
		Progress:  4,
		UpdatedAt: when,
	}
	gen := New(nil, false, logging.NewNop())

	got := gen.GenerateBidirectional(context.Background(), []watch.Entry{source}, []watch.Entry{target})
	if len(got) != 1 {
		t.Fatalf("GenerateBidirectional() = %d instructions, want 1", len(got))
	}
	if got[0].Platform != watch.PlatformAniList {
		t.Errorf("Platform = %q, want %q on a timestamp tie", got[0].Platform, watch.PlatformAniList)
	}
	if got[0].After.Progress != 6 {
		t.Errorf("After.Progress = %d, want the source side's 6", got[0].After.Progress)
	}
}

func TestBidirectionalKeepsUnpairedInstructions(t *testing.T) {
	// Source knows a title the target has never seen, and the target holds
	// a score the source side left unset. The unset score cannot fire the
	// forward direction, so each direction produces exactly one unpaired
	// instruction and both survive the merge.
	sourceOnly := watch.Entry{
		AnnictID:  1,
		AniListID: 501,
		Title:     "Source Only",
		Status:    watch.StatusWatching,
		Progress:  3,
	}
	sharedSource := watch.Entry{
		AnnictID:  2,
		AniListID: 502,
		Title:     "Target Scored",
		Status:    watch.StatusWatching,
		Progress:  4,
	}
	sharedTarget := watch.Entry{
		AnnictID:  2,
		AniListID: 502,
		Title:     "Target Scored",
		Status:    watch.StatusWatching,
		Progress:  4,
		Score:     7,
		UpdatedAt: day("2024-02-01"),
	}
	gen := New(nil, false, logging.NewNop())

	got := gen.GenerateBidirectional(context.Background(), []watch.Entry{sourceOnly, sharedSource}, []watch.Entry{sharedTarget})
	if len(got) != 2 {
		t.Fatalf("GenerateBidirectional() = %d instructions, want 2", len(got))
	}
	if got[0].Platform != watch.PlatformAniList || got[0].After.AnnictID != 1 {
		t.Errorf("instruction 0 = (%q, annict %d), want the forward create for title 1", got[0].Platform, got[0].After.AnnictID)
	}
	if got[1].Platform != watch.PlatformAnnict || got[1].After.AniListID != 502 {
		t.Errorf("instruction 1 = (%q, anilist %d), want the reverse score write for title 502", got[1].Platform, got[1].After.AniListID)
	}
}
