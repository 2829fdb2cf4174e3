package matcher

import "slices"

// Queries returns the search queries for a record, most specific first.
//
// title and fullArtist are expected to be normalized already; primary is the primary
// artist. Variants with empty inputs are skipped and duplicates removed. An empty title
// yields no queries.
func Queries(title, fullArtist, primary string) []string {
	if title == "" {
		return nil
	}

	var queries []string
	add := func(q string) {
		if !slices.Contains(queries, q) {
			queries = append(queries, q)
		}
	}

	if primary != "" {
		add(`"` + title + `" "` + primary + `"`)
		add(title + " " + primary)
	}
	if fullArtist != "" && fullArtist != primary {
		add(title + " " + fullArtist)
	}
	add(title)

	return queries
}
