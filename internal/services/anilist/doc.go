// Package anilist talks to the AniList GraphQL API: the user's full anime
// list via MediaListCollection, title search for match rescue, and
// SaveMediaListEntry writes for the apply step.
//
// AniList is the richer platform of the pair: entries carry real progress,
// scores, notes, and update timestamps, all of which map straight onto the
// canonical watch entry.
package anilist
