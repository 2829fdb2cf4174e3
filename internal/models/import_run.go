package models

import (
	"fmt"
	"time"
)

// Import run statuses.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ImportRun tracks one import of a CSV file into the destination service.
type ImportRun struct {
	record
	sourceFile   string
	kind         string
	status       string
	total        int
	imported     int
	failed       int
	failuresFile string
	errorMessage string
	startedAt    *time.Time
	completedAt  *time.Time
}

// NewImportRun creates a pending run for the given file and CSV kind.
func NewImportRun(sourceFile, kind string) *ImportRun {
	return &ImportRun{
		record:     newRecord(0),
		sourceFile: sourceFile,
		kind:       kind,
		status:     RunPending,
	}
}

func (r *ImportRun) SourceFile() string { return r.sourceFile }
func (r *ImportRun) Kind() string { return r.kind }
func (r *ImportRun) Status() string { return r.status }
func (r *ImportRun) Total() int { return r.total }
func (r *ImportRun) Imported() int { return r.imported }
func (r *ImportRun) Failed() int { return r.failed }
func (r *ImportRun) FailuresFile() string { return r.failuresFile }
func (r *ImportRun) ErrorMessage() string { return r.errorMessage }
func (r *ImportRun) StartedAt() *time.Time { return r.startedAt }
func (r *ImportRun) CompletedAt() *time.Time { return r.completedAt }

func (r *ImportRun) SetStatus(status string) { r.status = status }
func (r *ImportRun) SetFailuresFile(path string) { r.failuresFile = path }
func (r *ImportRun) SetErrorMessage(msg string) { r.errorMessage = msg }
func (r *ImportRun) SetStartedAt(t *time.Time) { r.startedAt = t }
func (r *ImportRun) SetCompletedAt(t *time.Time) { r.completedAt = t }
func (r *ImportRun) SetCounts(total, imported, failed int) {
	r.total, r.imported, r.failed = total, imported, failed
}

// Start marks the run as running.
func (r *ImportRun) Start() {
	now := time.Now().UTC()
	r.status = RunRunning
	r.startedAt = &now
}

// Finish marks the run completed, or failed when err is non-nil.
func (r *ImportRun) Finish(err error) {
	now := time.Now().UTC()
	r.completedAt = &now
	if err != nil {
		r.status = RunFailed
		r.errorMessage = err.Error()
		return
	}
	r.status = RunCompleted
}

// SuccessRate is imported/total as a percentage, 0 for an empty run.
func (r *ImportRun) SuccessRate() float64 {
	if r.total == 0 {
		return 0
	}
	return float64(r.imported) / float64(r.total) * 100
}

func (r *ImportRun) Validate() error {
	if r.sourceFile == "" {
		return fmt.Errorf("source file is required")
	}
	switch r.status {
	case RunPending, RunRunning, RunCompleted, RunFailed:
	default:
		return fmt.Errorf("invalid status %q", r.status)
	}
	if r.imported+r.failed > r.total && r.total > 0 {
		return fmt.Errorf("imported + failed exceeds total")
	}
	return nil
}
