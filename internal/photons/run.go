package photons

import (
	"database/sql"
	"time"
)

// Import run statuses.
const (
	RunRunning = "running"
	RunSuccess = "success"
	RunError   = "error"
)

// ImportRun is the stored history entry of one import invocation against a target.
type ImportRun struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	SourceRoot string
	Extension  string
	DryRun     bool
	Status     string
	Summary    ImportSummary
}

// Duration returns how long the run took, or zero while it is unfinished.
func (r *ImportRun) Duration() time.Duration {
	if !r.FinishedAt.Valid {
		return 0
	}
	return r.FinishedAt.Time.Sub(r.StartedAt)
}
