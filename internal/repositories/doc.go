// Package repositories implements SQLite persistence for the match cache and import history.
//
// Key Implementations:
//   - [MatchRepository] : accepted Spotify to TIDAL matches keyed by normalized "title|artist"
//   - [MatchCacheAdapter] : the import engine's view of the match cache
//   - [ImportRunRepository] : one row per import with status and counts
//
// Sequence numbers provide stable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
