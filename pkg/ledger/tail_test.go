package ledger

import (
	"os"
	"testing"
	"time"
)

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte("{broken"), 0o600)
}

func TestTailerInitialSnapshot(t *testing.T) {
	path := tempLedger(t)
	hub, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hub.SendMessage("backend", "frontend", "hello", ""); err != nil {
		t.Fatal(err)
	}

	tailer := NewTailer(path)
	doc := tailer.Snapshot()
	if doc == nil {
		t.Fatal("Snapshot() = nil after initial poll")
	}
	if len(doc.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(doc.Messages))
	}
}

func TestTailerMissingFile(t *testing.T) {
	tailer := NewTailer(tempLedger(t))
	if doc := tailer.Snapshot(); doc != nil {
		t.Errorf("Snapshot() = %+v for a missing file, want nil", doc)
	}
}

func TestTailerDetectsChange(t *testing.T) {
	path := tempLedger(t)
	hub, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	tailer := NewTailer(path, WithTailInterval(10*time.Millisecond))
	changed := make(chan *Document, 4)
	tailer.OnChange(func(doc *Document) {
		select {
		case changed <- doc:
		default:
		}
	})
	tailer.Start(t.Context())
	defer tailer.Stop()

	// Let the mod time tick past the initial poll before writing.
	time.Sleep(20 * time.Millisecond)
	if err := hub.UpdateStatus("qa", "running e2e suite", nil); err != nil {
		t.Fatal(err)
	}

	select {
	case doc := <-changed:
		if len(doc.StatusUpdates) != 1 {
			t.Errorf("snapshot has %d status updates, want 1", len(doc.StatusUpdates))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tailer never observed the write")
	}
}

func TestTailerIgnoresHalfWrittenFile(t *testing.T) {
	path := tempLedger(t)
	hub, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := hub.SetContext("phase", "build"); err != nil {
		t.Fatal(err)
	}

	tailer := NewTailer(path)
	before := tailer.Snapshot()
	if before == nil {
		t.Fatal("no initial snapshot")
	}

	// Clobber the file with garbage and poll: the old snapshot stands.
	time.Sleep(20 * time.Millisecond)
	if err := writeGarbage(path); err != nil {
		t.Fatal(err)
	}
	tailer.poll()
	after := tailer.Snapshot()
	if after == nil {
		t.Fatal("snapshot dropped on decode failure")
	}
	if _, ok := after.SharedContext["phase"]; !ok {
		t.Error("snapshot lost data after a bad poll")
	}
}
