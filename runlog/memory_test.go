package runlog

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRunLifecycle(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	base := time.Unix(0, 1700000000000000000)

	first := Run{ID: "run-1", RootPath: "A.md", StartedAt: base, Status: RunRunning}
	second := Run{ID: "run-2", RootPath: "B.md", StartedAt: base.Add(time.Second), Status: RunRunning}

	if err := store.BeginRun(ctx, first); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.BeginRun(ctx, second); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.BeginRun(ctx, first); err == nil {
		t.Error("expected error for duplicate run ID")
	}

	finished := base.Add(2 * time.Second)
	if err := store.FinishRun(ctx, "run-1", RunFailed, finished); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	if err := store.FinishRun(ctx, "nope", RunComplete, finished); err == nil {
		t.Error("expected error for unknown run")
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Errorf("expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
	if runs[1].Status != RunFailed || !runs[1].FinishedAt.Equal(finished) {
		t.Errorf("expected finished run to round trip, got %+v", runs[1])
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "run-2" {
		t.Errorf("expected only newest run, got %v", limited)
	}
}

func TestMemoryStoreEventsSortedBySeq(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	if err := store.BeginRun(ctx, NewRun("run-1", "A.md")); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	// Parallel branches may append out of order.
	for _, seq := range []uint64{2, 0, 1} {
		if err := store.AppendEvent(ctx, sampleEvent("run-1", seq)); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	events, err := store.Events(ctx, "run-1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, event := range events {
		if event.Seq != uint64(i) {
			t.Errorf("expected seq %d at position %d, got %d", i, i, event.Seq)
		}
	}
}

func TestMemoryStoreRejectsOrphanEvent(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	if err := store.AppendEvent(context.Background(), sampleEvent("nope", 0)); err == nil {
		t.Error("expected error for event without a recorded run")
	}
}

func TestMemoryStoreEventsReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	if err := store.BeginRun(ctx, NewRun("run-1", "A.md")); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.AppendEvent(ctx, sampleEvent("run-1", 0)); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	events, err := store.Events(ctx, "run-1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	events[0].FilePath = "mutated"

	reloaded, err := store.Events(ctx, "run-1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if reloaded[0].FilePath != "Notes.md" {
		t.Errorf("expected stored event unchanged, got %q", reloaded[0].FilePath)
	}
}
