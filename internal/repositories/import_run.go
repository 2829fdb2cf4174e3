package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
)

const importRunColumns = `
	id, seq, source_file, kind, status, total, imported, failed,
	failures_file, error_message, started_at, completed_at, created_at, updated_at`

// ImportRunRepository implements models.Repository[*models.ImportRun] for import history.
type ImportRunRepository struct {
	db *sql.DB
}

// NewImportRunRepository creates a new ImportRunRepository with the given database connection
func NewImportRunRepository(db *sql.DB) *ImportRunRepository {
	return &ImportRunRepository{db: db}
}

// Create inserts a new import run with generated ID and sequence
func (r *ImportRunRepository) Create(run *models.ImportRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "import_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	run.SetID(id)
	run.SetSequence(sequence)

	query := `
		INSERT INTO import_runs (` + importRunColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.SourceFile(),
		run.Kind(),
		run.Status(),
		run.Total(),
		run.Imported(),
		run.Failed(),
		run.FailuresFile(),
		run.ErrorMessage(),
		nullTime(run.StartedAt()),
		nullTime(run.CompletedAt()),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import run: %w", err)
	}

	return nil
}

// Get retrieves an import run by ID
func (r *ImportRunRepository) Get(id string) (*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + ` FROM import_runs WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// Update persists status, counts and timestamps of an existing run
func (r *ImportRunRepository) Update(run *models.ImportRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE import_runs
		SET status = ?, total = ?, imported = ?, failed = ?, failures_file = ?,
			error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		run.Status(),
		run.Total(),
		run.Imported(),
		run.Failed(),
		run.FailuresFile(),
		run.ErrorMessage(),
		nullTime(run.StartedAt()),
		nullTime(run.CompletedAt()),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update import run: %w", err)
	}
	return expectRow(result, "import run", run.ID())
}

// Delete removes an import run by ID
func (r *ImportRunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM import_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete import run: %w", err)
	}
	return expectRow(result, "import run", id)
}

// List retrieves import runs, newest first.
//
// Supported criteria: "status" (string), "kind" (string), "limit" (int).
func (r *ImportRunRepository) List(criteria map[string]any) ([]*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + ` FROM import_runs WHERE 1 = 1`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	query += " ORDER BY seq DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ImportRun
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func (r *ImportRunRepository) scan(row scanner) (*models.ImportRun, error) {
	var (
		id           string
		sequence     int
		sourceFile   string
		kind         string
		status       string
		total        int
		imported     int
		failed       int
		failuresFile string
		errorMessage string
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(
		&id, &sequence, &sourceFile, &kind, &status, &total, &imported, &failed,
		&failuresFile, &errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("import run %w", shared.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import run: %w", err)
	}

	run := models.NewImportRun(sourceFile, kind)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetStatus(status)
	run.SetCounts(total, imported, failed)
	run.SetFailuresFile(failuresFile)
	run.SetErrorMessage(errorMessage)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if startedAt.Valid {
		run.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}

	return run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
