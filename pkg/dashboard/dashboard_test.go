package dashboard

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crewforge/crewforge/pkg/ledger"
)

func sampleDocument() *ledger.Document {
	now := time.Now().UTC()
	doc := ledger.NewDocument()
	doc.Messages = []ledger.Message{
		{ID: "m1", From: "backend", To: "frontend", Body: "API ready", Type: ledger.MessageInfo, Timestamp: now},
		{ID: "m2", From: "frontend", To: "backend", Body: "which port?", Type: ledger.MessageQuestion, Timestamp: now.Add(time.Second)},
		{ID: "m3", From: "backend", To: "all", Body: "careful with main.go", Type: ledger.MessageWarning, Timestamp: now.Add(2 * time.Second)},
	}
	doc.StatusUpdates = []ledger.StatusUpdate{
		{Agent: "backend", State: "Started: build the engine", Timestamp: now},
		{Agent: "backend", State: "Completed: build the engine", Timestamp: now.Add(time.Minute)},
		{Agent: "frontend", State: "Started: build the UI", Timestamp: now},
	}
	doc.FileLocks = map[string]ledger.FileLock{
		"main.go": {Owner: "backend", AcquiredAt: now},
	}
	doc.LockRequests = []ledger.LockRequest{
		{ID: "r1", Agent: "frontend", Path: "main.go", Status: ledger.RequestApproved},
		{ID: "r2", Agent: "qa", Path: "main.go", Status: ledger.RequestDenied},
		{ID: "r3", Agent: "qa", Path: "engine.go", Status: ledger.RequestPending},
	}
	doc.IntegrationPoints = []ledger.IntegrationPoint{
		{Agent: "backend", Component: "GameEngine", Timestamp: now},
	}
	doc.Conflicts = []ledger.Conflict{
		{ID: "c1", Reporter: "qa", Description: "two engines", Status: ledger.ConflictOpen, ReportedAt: now},
		{ID: "c2", Reporter: "qa", Description: "naming clash", Status: ledger.ConflictResolved, Resolution: "renamed", ReportedAt: now},
	}
	return doc
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(sampleDocument(), time.Now().Add(-2*time.Minute))

	if stats.TotalMessages != 3 {
		t.Errorf("TotalMessages = %d, want 3", stats.TotalMessages)
	}
	if stats.MessagesByType[ledger.MessageInfo] != 1 || stats.MessagesByType[ledger.MessageWarning] != 1 {
		t.Errorf("MessagesByType = %v", stats.MessagesByType)
	}
	if stats.LocksHeld != 1 || stats.LocksRequested != 3 {
		t.Errorf("locks held=%d requested=%d", stats.LocksHeld, stats.LocksRequested)
	}
	if stats.LocksApproved != 1 || stats.LocksDenied != 1 {
		t.Errorf("approved=%d denied=%d", stats.LocksApproved, stats.LocksDenied)
	}
	if stats.ConflictsOpen != 1 || stats.ConflictsClosed != 1 {
		t.Errorf("conflicts open=%d closed=%d", stats.ConflictsOpen, stats.ConflictsClosed)
	}
	if stats.ActiveAgents != 3 {
		t.Errorf("ActiveAgents = %d, want 3", stats.ActiveAgents)
	}
	if stats.MessagesPerMin <= 0 {
		t.Errorf("MessagesPerMin = %f", stats.MessagesPerMin)
	}

	var backend AgentActivity
	for _, a := range stats.AgentActivity {
		if a.Agent == "backend" {
			backend = a
		}
	}
	if backend.MessagesSent != 2 {
		t.Errorf("backend messages = %d, want 2", backend.MessagesSent)
	}
	if backend.Status != "Completed: build the engine" {
		t.Errorf("backend status = %q", backend.Status)
	}
}

func TestComputeStatsNilDocument(t *testing.T) {
	stats := ComputeStats(nil, time.Time{})
	if stats.TotalMessages != 0 || stats.ActiveAgents != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSnapshotMsgPopulatesModel(t *testing.T) {
	m := New(func() (*ledger.Document, error) { return sampleDocument(), nil })

	updated, cmd := m.Update(snapshotMsg{doc: sampleDocument()})
	m = updated.(*Model)
	if cmd == nil {
		t.Error("snapshot should schedule the next refresh")
	}
	if m.doc == nil || m.stats.TotalMessages != 3 {
		t.Fatalf("model not populated: stats = %+v", m.stats)
	}

	view := m.View()
	for _, want := range []string{"backend", "frontend", "main.go", "GameEngine"} {
		if !strings.Contains(view, want) {
			t.Errorf("overview missing %q", want)
		}
	}
}

func TestSnapshotErrorShownInStatusBar(t *testing.T) {
	m := New(func() (*ledger.Document, error) { return nil, errors.New("no such file") })
	updated, _ := m.Update(snapshotMsg{err: errors.New("no such file")})
	m = updated.(*Model)
	if !strings.Contains(m.View(), "no such file") {
		t.Error("poll error not rendered")
	}
}

func TestTabSwitching(t *testing.T) {
	m := New(func() (*ledger.Document, error) { return sampleDocument(), nil })
	updated, _ := m.Update(snapshotMsg{doc: sampleDocument()})
	m = updated.(*Model)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(*Model)
	if m.activeTab != tabStatistics {
		t.Fatalf("activeTab = %d, want statistics", m.activeTab)
	}
	if view := m.View(); !strings.Contains(view, "Messages by Type") {
		t.Error("statistics tab not rendered")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3")})
	m = updated.(*Model)
	if m.activeTab != tabConflicts {
		t.Fatalf("activeTab = %d, want conflicts", m.activeTab)
	}
	view := m.View()
	if !strings.Contains(view, "two engines") || !strings.Contains(view, "renamed") {
		t.Error("conflicts tab missing content")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = updated.(*Model)
	if m.activeTab != tabStatistics {
		t.Fatalf("activeTab = %d after shift+tab", m.activeTab)
	}
}

func TestQuitKeys(t *testing.T) {
	m := New(func() (*ledger.Document, error) { return nil, nil })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if msg := cmd(); msg == nil {
		t.Error("quit cmd returned nil msg")
	}
}

func TestTickTriggersFetch(t *testing.T) {
	calls := 0
	m := New(func() (*ledger.Document, error) {
		calls++
		return ledger.NewDocument(), nil
	})
	_, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick should fetch a snapshot")
	}
	if msg := cmd(); msg == nil {
		t.Fatal("fetch returned nil msg")
	}
	if calls != 1 {
		t.Errorf("snapshot calls = %d, want 1", calls)
	}
}
