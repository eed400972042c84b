// Package match resolves which entry in one catalog corresponds to a given
// entry in the other.
//
// The Matcher works through a fixed pipeline: relation cache, MyAnimeList id
// bridge, fuzzy title scan against the catalog index, then an optional remote
// title search. Fuzzy candidates at or above the similarity threshold are
// gated on metadata agreement (year, airing quarter, media kind); when no
// candidate clears the threshold the single best pair is held to strict
// agreement instead, so weak textual evidence needs the metadata to carry it.
// Every confirmed pair is appended to the relation cache, which is why the
// expensive paths run at most once per title.
//
// An entry that resolves to nothing is a defined outcome, not an error: the
// caller counts it and moves on.
package match
