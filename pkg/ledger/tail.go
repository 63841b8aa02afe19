package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Tailer polls a ledger file for modifications and hands fresh
// snapshots to listeners. It is the read-only counterpart to Hub and
// is what the dashboard and the lock manager loop sit on.
type Tailer struct {
	mu        sync.RWMutex
	path      string
	interval  time.Duration
	lastMod   time.Time
	snapshot  *Document
	listeners []func(*Document)
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// TailerOption configures a Tailer.
type TailerOption func(*Tailer)

// WithTailInterval sets the poll interval. Defaults to 2 seconds.
func WithTailInterval(interval time.Duration) TailerOption {
	return func(t *Tailer) {
		if interval > 0 {
			t.interval = interval
		}
	}
}

// WithTailLogger sets the Tailer's logger.
func WithTailLogger(logger *slog.Logger) TailerOption {
	return func(t *Tailer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTailer creates a Tailer for the ledger at path. The file does
// not need to exist yet; the first successful poll populates the
// snapshot.
func NewTailer(path string, opts ...TailerOption) *Tailer {
	t := &Tailer{
		path:     path,
		interval: 2 * time.Second,
		logger:   slog.Default(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.poll()
	return t
}

// OnChange registers a callback invoked with each new snapshot.
func (t *Tailer) OnChange(fn func(*Document)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Snapshot returns the most recently observed document, or nil if the
// file has never been readable.
func (t *Tailer) Snapshot() *Document {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// Start begins polling in the background until ctx is cancelled or
// Stop is called.
func (t *Tailer) Start(ctx context.Context) {
	go t.run(ctx)
}

// Stop halts polling and waits for the poll loop to exit.
func (t *Tailer) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	<-t.doneCh
}

func (t *Tailer) run(ctx context.Context) {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.poll()
		}
	}
}

// poll re-reads the ledger if its mod time advanced. A half-written or
// unreadable file is skipped; the previous snapshot stands until the
// next poll.
func (t *Tailer) poll() {
	info, err := os.Stat(t.path)
	if err != nil {
		return
	}

	t.mu.Lock()
	if !info.ModTime().After(t.lastMod) {
		t.mu.Unlock()
		return
	}
	t.lastMod = info.ModTime()
	t.mu.Unlock()

	data, err := os.ReadFile(t.path)
	if err != nil {
		t.logger.Warn("ledger.tail.read_failed", slog.String("error", err.Error()))
		return
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.logger.Warn("ledger.tail.decode_failed", slog.String("error", err.Error()))
		return
	}
	doc.repair()

	t.mu.Lock()
	t.snapshot = &doc
	listeners := make([]func(*Document), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(&doc)
	}
}
