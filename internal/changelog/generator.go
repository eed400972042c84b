// Package changelog turns two watch-state collections into the minimal list
// of write instructions that would bring the receiving platform up to date.
//
// The generator never talks to the network itself; episode totals come in
// through EpisodeTotals and everything else is pure collection arithmetic.
// Entries are mutated in place (progress clamping, id and title back-fill),
// which is why the syncer hands it the same slices it later reports on.
package changelog

import (
	"context"
	"log/slog"
	"strings"

	"anisync/internal/logging"
	"anisync/internal/watch"
)

// Generator computes write instructions for one direction at a time, or for
// both at once with newer-wins conflict resolution.
type Generator struct {
	totals       EpisodeTotals
	syncComments bool
	logger       *slog.Logger
}

func New(totals EpisodeTotals, syncComments bool, logger *slog.Logger) *Generator {
	return &Generator{
		totals:       totals,
		syncComments: syncComments,
		logger:       logging.WithComponent(logger, "changelog"),
	}
}

// Generate diffs from against to and returns one instruction per entry whose
// state must change on the receiving platform. platform names the receiving
// side; to is that platform's current snapshot.
//
// Entries lacking both a direct id and a MAL id are skipped silently, so an
// unmatched title is simply absent from the output. Instructions come out in
// from's input order, which keeps runs byte-for-byte reproducible.
func (g *Generator) Generate(ctx context.Context, from, to []watch.Entry, platform watch.Platform) []watch.Instruction {
	byNative := make(map[int]*watch.Entry, len(to))
	byMAL := make(map[int]*watch.Entry, len(to))
	for i := range to {
		counterpart := &to[i]
		if id := counterpart.IDFor(platform); id > 0 {
			if _, ok := byNative[id]; !ok {
				byNative[id] = counterpart
			}
		}
		if counterpart.MALID > 0 {
			if _, ok := byMAL[counterpart.MALID]; !ok {
				byMAL[counterpart.MALID] = counterpart
			}
		}
	}

	var instructions []watch.Instruction
	for i := range from {
		entry := &from[i]
		if !entry.HasCounterpartID(platform) {
			continue
		}
		g.clamp(ctx, entry)

		counterpart := locate(byNative, byMAL, entry, platform)
		if counterpart == nil {
			g.logChange(platform, entry, nil)
			instructions = append(instructions, watch.Instruction{After: *entry, Platform: platform})
			continue
		}
		backfill(entry, counterpart)
		if !g.changed(entry, counterpart) {
			continue
		}
		before := *counterpart
		g.logChange(platform, entry, &before)
		instructions = append(instructions, watch.Instruction{Before: &before, After: *entry, Platform: platform})
	}
	return instructions
}

// GenerateBidirectional diffs both directions and, for titles that changed
// on both platforms, keeps only the write coming from the side updated more
// recently. Equal or missing timestamps keep the source-to-target write.
// Forward instructions come first, in source input order, followed by the
// surviving reverse instructions in target input order.
func (g *Generator) GenerateBidirectional(ctx context.Context, source, target []watch.Entry) []watch.Instruction {
	forward := g.Generate(ctx, source, target, watch.PlatformAniList)
	reverse := g.Generate(ctx, target, source, watch.PlatformAnnict)

	forwardByKey := make(map[entryKey]int)
	for i := range forward {
		for _, k := range keysOf(forward[i].After) {
			if _, ok := forwardByKey[k]; !ok {
				forwardByKey[k] = i
			}
		}
	}

	dropForward := make(map[int]bool)
	dropReverse := make(map[int]bool)
	for j := range reverse {
		i, paired := pairOf(forwardByKey, reverse[j].After)
		if !paired {
			continue
		}
		if reverse[j].After.UpdatedAt.After(forward[i].After.UpdatedAt) {
			dropForward[i] = true
			g.logConflict(forward[i], reverse[j], watch.PlatformAnnict)
		} else {
			dropReverse[j] = true
			g.logConflict(forward[i], reverse[j], watch.PlatformAniList)
		}
	}

	merged := make([]watch.Instruction, 0, len(forward)+len(reverse))
	for i := range forward {
		if !dropForward[i] {
			merged = append(merged, forward[i])
		}
	}
	for j := range reverse {
		if !dropReverse[j] {
			merged = append(merged, reverse[j])
		}
	}
	return merged
}

// clamp pins watched-episode counts to the known total. Completed entries
// are raised or lowered to the total; anything past the total is pulled
// back. User-reported progress drifts past canonical totals often enough
// that this runs on every entry.
func (g *Generator) clamp(ctx context.Context, entry *watch.Entry) {
	if g.totals == nil {
		return
	}
	total := g.totals.EpisodeTotal(ctx, *entry)
	if total <= 0 {
		return
	}
	if entry.Status == watch.StatusCompleted || entry.Progress > total {
		entry.Progress = total
	}
}

// changed reports whether writing after to the platform holding before would
// alter visible state. Zero values coming from a platform that does not
// track the field are "unset", not resets: an unset score cannot overwrite a
// set one, and a zero watched-count cannot rewind a positive one. Either
// still rides along once status flips.
func (g *Generator) changed(after, before *watch.Entry) bool {
	if after.Status != before.Status {
		return true
	}
	if after.Progress != before.Progress && !(after.Progress == 0 && before.Progress > 0) {
		return true
	}
	if after.Score != 0 && after.Score != before.Score {
		return true
	}
	if g.syncComments && after.Comment != before.Comment {
		return true
	}
	return false
}

func (g *Generator) logChange(platform watch.Platform, after *watch.Entry, before *watch.Entry) {
	args := []any{
		logging.String(logging.FieldEventType, "change_detected"),
		logging.String("platform", string(platform)),
		logging.String("title", after.Title),
		logging.Int("annict_id", after.AnnictID),
		logging.Int("anilist_id", after.AniListID),
		logging.String("status", after.Status.String()),
		logging.Int("progress", after.Progress),
	}
	if before == nil {
		args = append(args, logging.Bool("create", true))
	}
	g.logger.Debug("change detected", args...)
}

func (g *Generator) logConflict(forward, reverse watch.Instruction, winner watch.Platform) {
	g.logger.Debug("both platforms changed, newer side wins",
		logging.String(logging.FieldDecisionType, "conflict_resolution"),
		logging.String("decision_result", string(winner)),
		logging.String("title", forward.After.Title),
		logging.Any("source_updated_at", forward.After.UpdatedAt),
		logging.Any("target_updated_at", reverse.After.UpdatedAt))
}

// locate finds the receiving platform's record for entry, preferring the
// direct native id over the MAL bridge.
func locate(byNative, byMAL map[int]*watch.Entry, entry *watch.Entry, platform watch.Platform) *watch.Entry {
	if id := entry.IDFor(platform); id > 0 {
		if counterpart, ok := byNative[id]; ok {
			return counterpart
		}
	}
	if entry.MALID > 0 {
		if counterpart, ok := byMAL[entry.MALID]; ok {
			return counterpart
		}
	}
	return nil
}

// backfill copies ids and titles onto whichever side lacks them. It runs
// before the change check and is never itself a change.
func backfill(a, b *watch.Entry) {
	if a.AnnictID == 0 {
		a.AnnictID = b.AnnictID
	}
	if b.AnnictID == 0 {
		b.AnnictID = a.AnnictID
	}
	if a.AniListID == 0 {
		a.AniListID = b.AniListID
	}
	if b.AniListID == 0 {
		b.AniListID = a.AniListID
	}
	if a.MALID == 0 {
		a.MALID = b.MALID
	}
	if b.MALID == 0 {
		b.MALID = a.MALID
	}
	if strings.TrimSpace(a.Title) == "" {
		a.Title = b.Title
	}
	if strings.TrimSpace(b.Title) == "" {
		b.Title = a.Title
	}
}

// entryKey identifies a title by one of its ids. An instruction carries a
// key per id scheme its entry knows, and two instructions pair when any
// key collides.
type entryKey struct {
	scheme string
	id     int
}

func keysOf(entry watch.Entry) []entryKey {
	keys := make([]entryKey, 0, 3)
	if entry.AniListID > 0 {
		keys = append(keys, entryKey{"anilist", entry.AniListID})
	}
	if entry.AnnictID > 0 {
		keys = append(keys, entryKey{"annict", entry.AnnictID})
	}
	if entry.MALID > 0 {
		keys = append(keys, entryKey{"mal", entry.MALID})
	}
	return keys
}

func pairOf(forwardByKey map[entryKey]int, entry watch.Entry) (int, bool) {
	for _, k := range keysOf(entry) {
		if i, ok := forwardByKey[k]; ok {
			return i, true
		}
	}
	return 0, false
}
