package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/roster"
)

func testHub(t *testing.T) *ledger.Hub {
	t.Helper()
	hub, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatal(err)
	}
	return hub
}

func TestWriteFileCreatesAndNotifies(t *testing.T) {
	hub := testHub(t)
	workspace := t.TempDir()
	tool := NewWriteFile(WriteFileConfig{Hub: hub, Workspace: workspace, Agent: roster.Backend})

	out, err := tool.Call(context.Background(), map[string]any{
		"path":    "backend/game_engine.go",
		"content": "package backend\n",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.Contains(out, "created") {
		t.Errorf("output = %q, want created", out)
	}

	data, err := os.ReadFile(filepath.Join(workspace, "backend", "game_engine.go"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "package backend\n" {
		t.Errorf("content = %q", data)
	}

	doc, _ := hub.Snapshot()
	if len(doc.Messages) != 1 || doc.Messages[0].To != "all" {
		t.Errorf("team not notified: %+v", doc.Messages)
	}
	if len(doc.StatusUpdates) != 1 {
		t.Errorf("status not updated: %+v", doc.StatusUpdates)
	}
	// Lock released after the write.
	if _, held, _ := hub.LockHolder("backend/game_engine.go"); held {
		t.Error("lock not released")
	}
}

func TestWriteFileRespectsHeldLock(t *testing.T) {
	hub := testHub(t)
	if err := hub.AcquireLock("shared/config.go", roster.Frontend); err != nil {
		t.Fatal(err)
	}
	tool := NewWriteFile(WriteFileConfig{Hub: hub, Workspace: t.TempDir(), Agent: roster.Backend})

	out, err := tool.Call(context.Background(), map[string]any{
		"path":    "shared/config.go",
		"content": "x",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.Contains(out, "locked by frontend") {
		t.Errorf("output = %q, want lock denial naming the holder", out)
	}
}

func TestWriteFileRejectsEscapingPaths(t *testing.T) {
	tool := NewWriteFile(WriteFileConfig{Hub: testHub(t), Workspace: t.TempDir(), Agent: roster.QA})
	for _, path := range []string{"/etc/passwd", "../outside.txt", "a/../../outside.txt"} {
		if _, err := tool.Call(context.Background(), map[string]any{"path": path, "content": "x"}); err == nil {
			t.Errorf("path %q accepted", path)
		}
	}
}

func TestWriteFileWithApprovalWorkflow(t *testing.T) {
	hub := testHub(t)
	workspace := t.TempDir()
	tool := NewWriteFile(WriteFileConfig{
		Hub:          hub,
		Workspace:    workspace,
		Agent:        roster.Frontend,
		Approval:     true,
		PollInterval: 5 * time.Millisecond,
		MaxPolls:     100,
	})

	// Approve the request as soon as it appears.
	go func() {
		for i := 0; i < 200; i++ {
			pending, err := hub.PendingLockRequests()
			if err == nil && len(pending) > 0 {
				hub.ApproveLockRequest(pending[0].ID, "path is free")
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	out, err := tool.Call(context.Background(), map[string]any{
		"path":    "frontend/main_window.go",
		"content": "package frontend\n",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.Contains(out, "Wrote frontend/main_window.go") {
		t.Errorf("output = %q", out)
	}
}

func TestWriteFileApprovalDenied(t *testing.T) {
	hub := testHub(t)
	workspace := t.TempDir()
	tool := NewWriteFile(WriteFileConfig{
		Hub:          hub,
		Workspace:    workspace,
		Agent:        roster.Frontend,
		Approval:     true,
		PollInterval: 5 * time.Millisecond,
		MaxPolls:     100,
	})

	go func() {
		for i := 0; i < 200; i++ {
			pending, err := hub.PendingLockRequests()
			if err == nil && len(pending) > 0 {
				hub.DenyLockRequest(pending[0].ID, "backend owns this file")
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	out, err := tool.Call(context.Background(), map[string]any{
		"path":    "backend/api.go",
		"content": "x",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !strings.Contains(out, "denied") || !strings.Contains(out, "backend owns this file") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(workspace, "backend", "api.go")); err == nil {
		t.Error("denied write still created the file")
	}
}

func TestTeamMessageSendAndDrain(t *testing.T) {
	hub := testHub(t)
	sender := NewTeamMessage(hub, roster.Backend)
	receiver := NewTeamMessage(hub, roster.Frontend)

	out, err := sender.Call(context.Background(), map[string]any{
		"action": "send_message",
		"to":     roster.Frontend,
		"body":   "API schema at integration/coordinator",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out, "frontend") {
		t.Errorf("send output = %q", out)
	}

	out, err = receiver.Call(context.Background(), map[string]any{"action": "get_messages"})
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !strings.Contains(out, "From backend: API schema") {
		t.Errorf("drain output = %q", out)
	}

	// Drained mailbox is empty on the second read.
	out, err = receiver.Call(context.Background(), map[string]any{"action": "get_messages"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "No new messages" {
		t.Errorf("second drain = %q", out)
	}
}

func TestTeamMessageFreeTextAction(t *testing.T) {
	hub := testHub(t)
	tool := NewTeamMessage(hub, roster.QA)
	if _, err := tool.Call(context.Background(), map[string]any{"action": "login flow looks good"}); err != nil {
		t.Fatalf("free-text action: %v", err)
	}
	msgs, _ := hub.Messages("all", true)
	if len(msgs) != 1 || msgs[0].Body != "login flow looks good" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestTeamMessageShareProgress(t *testing.T) {
	hub := testHub(t)
	tool := NewTeamMessage(hub, roster.Performance)
	_, err := tool.Call(context.Background(), map[string]any{
		"action": "share_progress",
		"body":   "profiling complete",
	})
	if err != nil {
		t.Fatal(err)
	}
	updates, _ := hub.StatusUpdates()
	if len(updates) != 1 || updates[0].State != "profiling complete" {
		t.Errorf("status updates = %+v", updates)
	}
}

func TestIntegrationRegisterAndDependencies(t *testing.T) {
	hub := testHub(t)
	tool := NewIntegration(hub, roster.Backend)

	_, err := tool.Call(context.Background(), map[string]any{
		"action":    "register_interface",
		"component": "resource_system",
		"interface": map[string]any{"dependencies": []any{"game_engine"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := tool.Call(context.Background(), map[string]any{
		"action":    "check_dependencies",
		"component": "game_engine",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "resource_system by backend") {
		t.Errorf("dependencies = %q", out)
	}

	out, err = tool.Call(context.Background(), map[string]any{
		"action":    "check_dependencies",
		"component": "theme_manager",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No dependencies") {
		t.Errorf("unexpected dependencies: %q", out)
	}
}

func TestIntegrationReportConflict(t *testing.T) {
	hub := testHub(t)
	tool := NewIntegration(hub, roster.QA)
	out, err := tool.Call(context.Background(), map[string]any{
		"action":   "report_conflict",
		"conflict": "frontend and backend disagree on save format",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "reported") {
		t.Errorf("output = %q", out)
	}
	doc, _ := hub.Snapshot()
	if len(doc.OpenConflicts()) != 1 {
		t.Errorf("open conflicts = %d, want 1", len(doc.OpenConflicts()))
	}
	// Integration developer was told directly.
	msgs, _ := hub.Messages(roster.Integration, true)
	if len(msgs) != 1 || !strings.Contains(msgs[0].Body, "CONFLICT DETECTED") {
		t.Errorf("integration mailbox = %+v", msgs)
	}
}

func TestProjectStatusViews(t *testing.T) {
	hub := testHub(t)
	hub.UpdateStatus(roster.Backend, "engine loop done", nil)
	hub.UpdateStatus(roster.Frontend, "main window sketched", nil)
	hub.AcquireLock("backend/save_system.go", roster.Backend)
	hub.RegisterIntegrationPoint(roster.Backend, "save_system", nil)

	tool := NewProjectStatus(hub)
	ctx := context.Background()

	out, err := tool.Call(ctx, map[string]any{"action": "team_status"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "backend: engine loop done") || !strings.Contains(out, "frontend: main window sketched") {
		t.Errorf("team_status = %q", out)
	}

	out, err = tool.Call(ctx, map[string]any{"action": "file_status"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "backend/save_system.go (locked by backend)") {
		t.Errorf("file_status = %q", out)
	}

	out, err = tool.Call(ctx, map[string]any{"action": "integration_status"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "save_system by backend") {
		t.Errorf("integration_status = %q", out)
	}

	// Unknown actions default to team status.
	out, err = tool.Call(ctx, map[string]any{"action": "whatever"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Team status") {
		t.Errorf("default action = %q", out)
	}
}

func TestLockManagerDecisions(t *testing.T) {
	hub := testHub(t)
	tool := NewLockManager(hub, roster.LockManager)
	ctx := context.Background()

	out, err := tool.Call(ctx, map[string]any{"action": "list_requests"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No pending") {
		t.Errorf("empty list = %q", out)
	}

	req, err := hub.RequestLock(roster.Frontend, "frontend/theme_manager.go", "styling pass")
	if err != nil {
		t.Fatal(err)
	}

	out, err = tool.Call(ctx, map[string]any{"action": "list_requests"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, req.ID) {
		t.Errorf("list missing request: %q", out)
	}

	out, err = tool.Call(ctx, map[string]any{"action": "approve", "request_id": req.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Approved") {
		t.Errorf("approve = %q", out)
	}
	if owner, held, _ := hub.LockHolder("frontend/theme_manager.go"); !held || owner != roster.Frontend {
		t.Error("approval did not grant the lock")
	}
	// Requester was notified.
	msgs, _ := hub.Messages(roster.Frontend, true)
	if len(msgs) != 1 || !strings.Contains(msgs[0].Body, "approved") {
		t.Errorf("requester mailbox = %+v", msgs)
	}

	// Already-decided requests are reported, not errors.
	out, err = tool.Call(ctx, map[string]any{"action": "approve", "request_id": req.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Cannot approve") {
		t.Errorf("re-approve = %q", out)
	}
}

func TestLockManagerApproveAll(t *testing.T) {
	hub := testHub(t)
	hub.RequestLock(roster.Frontend, "a.go", "")
	hub.RequestLock(roster.QA, "b.go", "")

	tool := NewLockManager(hub, roster.LockManager)
	out, err := tool.Call(context.Background(), map[string]any{"action": "approve_all"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Approved 2") {
		t.Errorf("approve_all = %q", out)
	}
}

func TestToolDefinitions(t *testing.T) {
	hub := testHub(t)
	all := []Tool{
		NewWriteFile(WriteFileConfig{Hub: hub, Workspace: t.TempDir(), Agent: "x"}),
		NewTeamMessage(hub, "x"),
		NewIntegration(hub, "x"),
		NewProjectStatus(hub),
		NewLockManager(hub, "x"),
	}
	seen := map[string]bool{}
	for _, tool := range all {
		def := tool.Definition()
		if def.Function.Name != tool.Name() {
			t.Errorf("definition name %q != tool name %q", def.Function.Name, tool.Name())
		}
		if def.Function.Parameters == nil {
			t.Errorf("%s has no parameter schema", tool.Name())
		}
		if seen[tool.Name()] {
			t.Errorf("duplicate tool name %s", tool.Name())
		}
		seen[tool.Name()] = true
	}
}
