package runlog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/weftlabs/weft/resolve"
)

// MemoryStore implements Store with in-process maps. Useful for tests
// and for runs that should leave no database file behind.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]Run
	events map[string][]resolve.Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]Run),
		events: make(map[string][]resolve.Event),
	}
}

func (m *MemoryStore) BeginRun(ctx context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run %s already recorded", run.ID)
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryStore) FinishRun(ctx context.Context, runID string, status RunStatus, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, exists := m.runs[runID]
	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}
	run.Status = status
	run.FinishedAt = finishedAt
	m.runs[runID] = run
	return nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event resolve.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[event.RunID]; !exists {
		return fmt.Errorf("run %s not found", event.RunID)
	}
	m.events[event.RunID] = append(m.events[event.RunID], event)
	return nil
}

func (m *MemoryStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStore) Events(ctx context.Context, runID string) ([]resolve.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Copy before sorting: appends from parallel branches arrive in
	// nondeterministic order, but callers see emission order.
	events := make([]resolve.Event, len(m.events[runID]))
	copy(events, m.events[runID])
	sort.Slice(events, func(i, j int) bool {
		return events[i].Seq < events[j].Seq
	})
	return events, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Verify MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
