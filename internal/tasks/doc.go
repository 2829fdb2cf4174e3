// Package tasks moves a music library from Spotify to TIDAL through CSV files.
//
// # Core Operations
//
// [Engine] exposes the operations behind the CLI and the interactive menu:
//
//  1. [Engine.Export] : Spotify library to timestamped CSV files
//     - Saved tracks are labeled with the "Liked Songs" playlist
//     - Playlist tracks are fetched on a bounded, rate limited worker pool
//     - "all" combines saved and playlist tracks and adds artists and albums
//
//  2. [Engine.Import] : one CSV file into TIDAL
//     - Tracks are grouped by playlist in first-appearance order
//     - Each group reuses a TIDAL playlist of the same name or creates one
//     - Tracks are matched with the catalog matcher and added in batches
//     - Rows outside any playlist become favorite tracks
//     - Artists and albums favorite the first search hit
//     - Unimported rows are written to a failures CSV
//
//  3. [Engine.CheckConnections] : authenticated user of each service
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Match Cache and History
//
// The optional [MatchCache] skips searches for tracks matched by an earlier import, and the
// optional [RunStore] records every import. Both are backed by the repositories package.
package tasks
