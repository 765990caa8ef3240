// Package store records pipeline run history in an embedded SQLite
// database so past joins, fills, and loads can be inspected later.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// RunStatus tracks a run's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded invocation of a pipeline command.
type Run struct {
	ID         string          `json:"id"`
	Command    string          `json:"command"`
	Status     RunStatus       `json:"status"`
	Report     json.RawMessage `json:"report,omitempty"` // command-specific counts
	OutputPath string          `json:"output_path,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Duration is the wall time between creation and the last update.
func (r Run) Duration() time.Duration {
	return r.UpdatedAt.Sub(r.CreatedAt)
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Command string    `json:"command,omitempty"`
	Status  RunStatus `json:"status,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}

// Store defines the run-history persistence interface.
type Store interface {
	CreateRun(ctx context.Context, command string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, report any, outputPath string) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
