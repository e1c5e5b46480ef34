// Package runlog persists resolution runs and their node events.
//
// Information Hiding:
// - SQLite connection management and schema details stay behind Store
// - Event order is the emitter's sequence number; stores never renumber
// - Thread-safe via sql.DB connection pooling (SQLite) or a mutex (memory)
package runlog

import (
	"context"
	"time"

	"github.com/weftlabs/weft/resolve"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// Run is one recorded resolution run.
type Run struct {
	ID         string
	RootPath   string
	StartedAt  time.Time
	FinishedAt time.Time // zero until the run finishes
	Status     RunStatus
}

// NewRun builds a running Run record starting now.
func NewRun(id, rootPath string) Run {
	return Run{
		ID:        id,
		RootPath:  rootPath,
		StartedAt: time.Now(),
		Status:    RunRunning,
	}
}

// Store persists runs and their node events. Implementations must be
// safe for concurrent use: sibling subtrees emit events in parallel.
type Store interface {
	// BeginRun records a new run. Fails if the run ID is already recorded.
	BeginRun(ctx context.Context, run Run) error

	// FinishRun marks a recorded run complete or failed.
	FinishRun(ctx context.Context, runID string, status RunStatus, finishedAt time.Time) error

	// AppendEvent records one node event under its run.
	AppendEvent(ctx context.Context, event resolve.Event) error

	// ListRuns returns recorded runs, newest first. A limit of zero or
	// less returns all runs.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Events returns a run's events in emission order. An unknown run
	// yields an empty slice, not an error.
	Events(ctx context.Context, runID string) ([]resolve.Event, error)

	// Close releases the underlying storage.
	Close() error
}
