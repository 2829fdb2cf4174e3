package repositories

import (
	"errors"
	"fmt"

	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/mattn/go-sqlite3"
)

// MatchCacheAdapter implements tasks.MatchCache using MatchRepository.
//
// Entries are keyed by [shared.NormalizeTrackKey]. Concurrent stores of the same key are
// deduplicated by the UNIQUE constraint on source_key.
type MatchCacheAdapter struct {
	repo *MatchRepository
}

// NewMatchCacheAdapter creates a new MatchCacheAdapter with the given repository
func NewMatchCacheAdapter(repo *MatchRepository) *MatchCacheAdapter {
	return &MatchCacheAdapter{repo: repo}
}

// Lookup returns the cached match for source, or nil when there is none.
func (a *MatchCacheAdapter) Lookup(source models.Track) (*models.Match, error) {
	match, err := a.repo.GetBySourceKey(shared.NormalizeTrackKey(source.Title, source.Artist))
	if errors.Is(err, shared.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return match, nil
}

// Store caches an accepted match. Existing entries are left untouched.
func (a *MatchCacheAdapter) Store(source, dest models.Track, score float64, query string) error {
	key := shared.NormalizeTrackKey(source.Title, source.Artist)

	err := a.repo.Create(models.NewMatch(key, source, dest, score, query))
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to cache match: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
