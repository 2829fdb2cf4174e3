// Package matcher locates source-catalog tracks in a destination catalog that shares no
// identifiers with it.
//
// A [SourceRecord] is turned into an ordered list of search queries, from the quoted
// title and primary artist down to the bare title. Each query's candidates are scored:
//
//	artist   ArtistSimilarity(source, candidate) × 0.6
//	album    ArtistSimilarity(source, candidate) × 0.2   (both albums present)
//	duration 0.2 within 5s, 0.1 within 15s, 0.1 if either side is unknown
//	title    0.1 when one normalized title contains the other
//
// The best candidate across queries is kept (first seen wins ties). Searching stops once
// it reaches 0.8; it is accepted at 0.5 and graded [ConfidenceHigh] at 0.8.
//
// [Matcher.MatchAll] fans records out over a bounded pool while keeping input order.
package matcher
