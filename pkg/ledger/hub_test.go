package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	cferrors "github.com/crewforge/crewforge/pkg/errors"
)

func tempLedger(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ledger.json")
}

func TestOpenCreatesLedger(t *testing.T) {
	path := tempLedger(t)
	hub, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ledger file not created: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("ledger is not valid JSON: %v", err)
	}
	for _, key := range []string{
		"communications", "status_updates", "shared_context",
		"file_locks", "file_lock_requests", "integration_points", "conflict_reports",
	} {
		if _, ok := raw[key]; !ok {
			t.Errorf("new ledger missing %q", key)
		}
	}
	if hub.Path() != path {
		t.Errorf("Path() = %q, want %q", hub.Path(), path)
	}
}

func TestOpenRepairsMissingCollections(t *testing.T) {
	path := tempLedger(t)
	partial := `{"communications": [{"id":"m1","from":"a","to":"b","body":"hi","type":"info","read":false,"timestamp":"2026-01-02T03:04:05Z"}]}`
	if err := os.WriteFile(path, []byte(partial), 0o600); err != nil {
		t.Fatal(err)
	}

	hub, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	doc, err := hub.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(doc.Messages) != 1 {
		t.Fatalf("repair dropped messages: got %d, want 1", len(doc.Messages))
	}
	if doc.FileLocks == nil || doc.SharedContext == nil {
		t.Error("repair left nil collections")
	}
}

func TestOpenRecreatesCorruptLedger(t *testing.T) {
	path := tempLedger(t)
	if err := os.WriteFile(path, []byte("{definitely not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	hub, err := Open(path)
	if err != nil {
		t.Fatalf("Open() should recreate a corrupt ledger, got %v", err)
	}
	doc, err := hub.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(doc.Messages) != 0 || len(doc.FileLocks) != 0 {
		t.Error("recreated ledger is not empty")
	}
}

func TestSendMessageAndMarkRead(t *testing.T) {
	hub, err := Open(tempLedger(t))
	if err != nil {
		t.Fatal(err)
	}

	first, err := hub.SendMessage("backend", "frontend", "API schema is ready", MessageHandoff)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if first.ID == "" {
		t.Error("message has no ID")
	}
	if _, err := hub.SendMessage("qa", "frontend", "tests failing on login", MessageWarning); err != nil {
		t.Fatal(err)
	}
	if _, err := hub.SendMessage("backend", "qa", "ignore flaky suite", ""); err != nil {
		t.Fatal(err)
	}

	unread, err := hub.Messages("frontend", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 2 {
		t.Fatalf("unread for frontend = %d, want 2", len(unread))
	}

	if err := hub.MarkRead(first.ID, "no-such-id"); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	unread, err = hub.Messages("frontend", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 {
		t.Fatalf("unread after MarkRead = %d, want 1", len(unread))
	}
	all, err := hub.Messages("frontend", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all messages for frontend = %d, want 2", len(all))
	}
}

func TestSendMessageValidation(t *testing.T) {
	hub, err := Open(tempLedger(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hub.SendMessage("", "frontend", "hi", ""); !cferrors.IsCode(err, cferrors.CodeInvalidInput) {
		t.Errorf("missing sender: got %v, want CodeInvalidInput", err)
	}
}

func TestStatusUpdatesCapped(t *testing.T) {
	hub, err := Open(tempLedger(t))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < maxStatusUpdates+7; i++ {
		if err := hub.UpdateStatus("backend", "working", map[string]any{"step": i}); err != nil {
			t.Fatal(err)
		}
	}
	updates, err := hub.StatusUpdates()
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != maxStatusUpdates {
		t.Fatalf("status board = %d entries, want %d", len(updates), maxStatusUpdates)
	}
	// Oldest entries trimmed, newest kept.
	if got := updates[len(updates)-1].Details["step"]; got != float64(maxStatusUpdates+6) && got != maxStatusUpdates+6 {
		t.Errorf("newest entry step = %v, want %d", got, maxStatusUpdates+6)
	}
}

func TestStatusUpdatesFor(t *testing.T) {
	hub, err := Open(tempLedger(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := hub.UpdateStatus("backend", "working", nil); err != nil {
		t.Fatal(err)
	}
	if err := hub.UpdateStatus("frontend", "blocked", nil); err != nil {
		t.Fatal(err)
	}
	if err := hub.UpdateStatus("backend", "done", nil); err != nil {
		t.Fatal(err)
	}

	updates, err := hub.StatusUpdatesFor("backend")
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 2 || updates[0].State != "working" || updates[1].State != "done" {
		t.Errorf("backend updates = %+v", updates)
	}
	if none, _ := hub.StatusUpdatesFor("qa"); len(none) != 0 {
		t.Errorf("qa updates = %+v, want none", none)
	}
}

func TestSharedContext(t *testing.T) {
	hub, err := Open(tempLedger(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := hub.SetContext("api_base", "/api/v1"); err != nil {
		t.Fatal(err)
	}
	val, ok, err := hub.Context("api_base")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || val != "/api/v1" {
		t.Errorf("Context() = %v, %v; want /api/v1, true", val, ok)
	}
	if _, ok, _ := hub.Context("missing"); ok {
		t.Error("Context() reported a missing key as present")
	}
	if err := hub.SetContext("", "x"); !cferrors.IsCode(err, cferrors.CodeInvalidInput) {
		t.Errorf("empty key: got %v, want CodeInvalidInput", err)
	}

	if err := hub.SetContext("save_format", "json-v2"); err != nil {
		t.Fatal(err)
	}
	all, err := hub.ContextAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all["api_base"] != "/api/v1" || all["save_format"] != "json-v2" {
		t.Errorf("ContextAll() = %v", all)
	}
}

func TestConflictLifecycle(t *testing.T) {
	hub, err := Open(tempLedger(t))
	if err != nil {
		t.Fatal(err)
	}
	c, err := hub.ReportConflict("qa", "frontend and backend disagree on auth payload")
	if err != nil {
		t.Fatalf("ReportConflict() error = %v", err)
	}
	if c.Status != ConflictOpen {
		t.Errorf("new conflict status = %q, want %q", c.Status, ConflictOpen)
	}

	if err := hub.ResolveConflict(c.ID, "backend schema wins"); err != nil {
		t.Fatalf("ResolveConflict() error = %v", err)
	}
	doc, _ := hub.Snapshot()
	if len(doc.OpenConflicts()) != 0 {
		t.Error("conflict still open after resolution")
	}
	if doc.Conflicts[0].Resolution != "backend schema wins" {
		t.Errorf("resolution = %q", doc.Conflicts[0].Resolution)
	}

	// Resolving twice is a no-op, resolving the unknown is an error.
	if err := hub.ResolveConflict(c.ID, "again"); err != nil {
		t.Errorf("second resolve should be a no-op, got %v", err)
	}
	if err := hub.ResolveConflict("nope", "x"); !cferrors.IsCode(err, cferrors.CodeNotFound) {
		t.Errorf("unknown conflict: got %v, want CodeNotFound", err)
	}
}

func TestRegisterIntegrationPoint(t *testing.T) {
	hub, err := Open(tempLedger(t))
	if err != nil {
		t.Fatal(err)
	}
	contract := map[string]any{"method": "POST", "path": "/api/v1/login"}
	if err := hub.RegisterIntegrationPoint("backend", "auth-endpoint", contract); err != nil {
		t.Fatalf("RegisterIntegrationPoint() error = %v", err)
	}
	doc, _ := hub.Snapshot()
	if len(doc.IntegrationPoints) != 1 {
		t.Fatalf("integration points = %d, want 1", len(doc.IntegrationPoints))
	}
	if doc.IntegrationPoints[0].Component != "auth-endpoint" {
		t.Errorf("component = %q", doc.IntegrationPoints[0].Component)
	}
}
