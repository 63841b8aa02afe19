package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/crewforge/crewforge/pkg/core"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", []string{"backend", "frontend"}); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", RunStatusCompleted); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	runs, err := store.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	run := runs[0]
	if run.RunID != "run-1" || run.Status != RunStatusCompleted {
		t.Errorf("run = %+v", run)
	}
	if len(run.Agents) != 2 || run.Agents[0] != "backend" {
		t.Errorf("agents = %v", run.Agents)
	}
	if run.FinishedAt.IsZero() {
		t.Error("finished_at not recorded")
	}
}

func TestRunsNewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.BeginRun(ctx, id, nil); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := store.Runs(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].RunID != "run-c" {
		t.Errorf("first run = %q, want run-c", runs[0].RunID)
	}
}

func TestEventsFiltering(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	seed := []Event{
		{RunID: "run-1", Type: "agent.task.started", Agent: "backend", CreatedAt: base},
		{RunID: "run-1", Type: "agent.tool.called", Agent: "backend", Payload: map[string]any{"tool": "write_file"}, CreatedAt: base.Add(time.Second)},
		{RunID: "run-1", Type: "agent.task.started", Agent: "frontend", CreatedAt: base.Add(2 * time.Second)},
		{RunID: "run-2", Type: "agent.task.started", Agent: "backend", CreatedAt: base.Add(3 * time.Second)},
	}
	for _, event := range seed {
		if err := store.RecordEvent(ctx, event); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, err := store.Events(ctx, EventFilter{RunID: "run-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("run-1 events = %d, want 3", len(events))
	}
	if events[0].Type != "agent.task.started" || events[1].Type != "agent.tool.called" {
		t.Errorf("order = %q, %q", events[0].Type, events[1].Type)
	}
	if tool, ok := events[1].Payload["tool"].(string); !ok || tool != "write_file" {
		t.Errorf("payload = %v", events[1].Payload)
	}

	events, err = store.Events(ctx, EventFilter{Agent: "backend", Type: "agent.task.started"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("backend starts = %d, want 2", len(events))
	}

	events, err = store.Events(ctx, EventFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("limited events = %d, want 1", len(events))
	}
}

func TestLedgerSnapshots(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, err := store.LatestLedger(ctx, "run-1"); err != sql.ErrNoRows {
		t.Fatalf("missing snapshot error = %v, want sql.ErrNoRows", err)
	}

	if err := store.SnapshotLedger(ctx, "run-1", map[string]any{"shared_context": map[string]any{"phase": "one"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.SnapshotLedger(ctx, "run-1", map[string]any{"shared_context": map[string]any{"phase": "two"}}); err != nil {
		t.Fatal(err)
	}

	raw, err := store.LatestLedger(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("snapshot is not JSON: %v", err)
	}
	if doc["shared_context"]["phase"] != "two" {
		t.Errorf("latest snapshot phase = %v, want two", doc["shared_context"]["phase"])
	}
}

func TestSinkArchivesEvents(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	var forwarded []core.Event
	next := eventFunc(func(_ context.Context, event core.Event) {
		forwarded = append(forwarded, event)
	})

	sink := NewSink(store, "run-9", next)
	sink.Emit(ctx, core.NewEvent(core.EventTaskCompleted, "qa", "task-1", map[string]any{"answer": "ok"}))

	events, err := store.Events(ctx, EventFilter{RunID: "run-9"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("archived events = %d, want 1", len(events))
	}
	if events[0].Agent != "qa" || events[0].TaskID != "task-1" {
		t.Errorf("event = %+v", events[0])
	}
	if len(forwarded) != 1 || forwarded[0].Type != core.EventTaskCompleted {
		t.Errorf("forwarded = %v", forwarded)
	}
}

type eventFunc func(context.Context, core.Event)

func (f eventFunc) Emit(ctx context.Context, event core.Event) { f(ctx, event) }
