package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
)

const matchColumns = `id, seq, source_key, source_title, source_artist, dest_id, dest_title, dest_artist, score, query, created_at, updated_at`

// MatchRepository implements models.Repository[*models.Match] for the match cache.
//
// Matches are unique by source key; deletes are hard deletes.
type MatchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a new MatchRepository with the given database connection
func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create inserts a new [models.Match] with generated ID and sequence
func (r *MatchRepository) Create(match *models.Match) error {
	if err := match.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "matches")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	match.SetID(id)
	match.SetSequence(sequence)

	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		match.SourceKey(),
		match.SourceTitle(),
		match.SourceArtist(),
		match.DestID(),
		match.DestTitle(),
		match.DestArtist(),
		match.Score(),
		match.Query(),
		match.CreatedAt(),
		match.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}

	return nil
}

// Get retrieves a match by ID
func (r *MatchRepository) Get(id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// GetBySourceKey retrieves the match cached for a normalized "title|artist" key
func (r *MatchRepository) GetBySourceKey(key string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE source_key = ?`
	return r.scan(r.db.QueryRow(query, key))
}

// Update replaces the destination side of an existing match
func (r *MatchRepository) Update(match *models.Match) error {
	if err := match.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	match.SetUpdatedAt(now)

	query := `
		UPDATE matches
		SET dest_id = ?, dest_title = ?, dest_artist = ?, score = ?, query = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		match.DestID(),
		match.DestTitle(),
		match.DestArtist(),
		match.Score(),
		match.Query(),
		now,
		match.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	return expectRow(result, "match", match.ID())
}

// Delete removes a match by ID
func (r *MatchRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM matches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	return expectRow(result, "match", id)
}

// List retrieves matches, newest first.
//
// Supported criteria: "dest_id" (string), "min_score" (float64), "limit" (int).
func (r *MatchRepository) List(criteria map[string]any) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE 1 = 1`
	args := []any{}

	if destID, ok := criteria["dest_id"].(string); ok && destID != "" {
		query += " AND dest_id = ?"
		args = append(args, destID)
	}

	if minScore, ok := criteria["min_score"].(float64); ok {
		query += " AND score >= ?"
		args = append(args, minScore)
	}

	query += " ORDER BY seq DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return matches, nil
}

// Count returns the number of cached matches
func (r *MatchRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

// Clear removes every cached match and returns how many were removed
func (r *MatchRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM matches`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear matches: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func (r *MatchRepository) scan(row scanner) (*models.Match, error) {
	var (
		id           string
		sequence     int
		sourceKey    string
		sourceTitle  string
		sourceArtist string
		destID       string
		destTitle    string
		destArtist   string
		score        float64
		query        string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&id, &sequence, &sourceKey, &sourceTitle, &sourceArtist,
		&destID, &destTitle, &destArtist, &score, &query, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %w", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}

	match := models.NewMatch(
		sourceKey,
		models.Track{Title: sourceTitle, Artist: sourceArtist},
		models.Track{ID: destID, Title: destTitle, Artist: destArtist},
		score,
		query,
	)
	match.SetID(id)
	match.SetSequence(sequence)
	match.SetCreatedAt(createdAt)
	match.SetUpdatedAt(updatedAt)

	return match, nil
}
