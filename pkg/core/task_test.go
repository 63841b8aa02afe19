package core

import "testing"

func TestTaskLifecycle(t *testing.T) {
	task := NewTask("Frontend Developer", "build the upgrade panel")
	if task.Status != TaskStatusPending {
		t.Fatalf("expected pending status")
	}
	if task.ID == "" {
		t.Fatalf("expected generated id")
	}
	task.Start()
	if task.Status != TaskStatusRunning {
		t.Fatalf("expected running status")
	}
	task.Complete()
	if task.Status != TaskStatusCompleted {
		t.Fatalf("expected completed status")
	}
	task.Fail("lock never granted")
	if task.Status != TaskStatusFailed {
		t.Fatalf("expected failed status")
	}
	if task.Error == "" {
		t.Fatalf("expected error to be set")
	}
}

func TestEnsureRunID(t *testing.T) {
	ctx, id := EnsureRunID(t.Context())
	if id == "" {
		t.Fatalf("expected run id")
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id {
		t.Fatalf("expected run id to be stable, got %s and %s", id, id2)
	}
	if ctx2 != ctx {
		t.Fatalf("expected context to be reused when run id present")
	}
}
