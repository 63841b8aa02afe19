package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cferrors "github.com/crewforge/crewforge/pkg/errors"
)

// Hub mediates all access to a ledger file. Every operation is a full
// read-modify-write under a process-wide mutex, and writes land via a
// temp file plus rename so readers polling the file never see a
// partial document.
type Hub struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the Hub's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock overrides the Hub's time source. Tests use this to pin
// timestamps and to age entries past their TTL.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// Open initializes a Hub over the ledger at path. A missing file is
// created with an empty document, a file with missing collections is
// repaired in place, and an unparseable file is replaced with a fresh
// document after a warning. The parent directory is created if needed.
func Open(path string, opts ...HubOption) (*Hub, error) {
	h := &Hub{
		path:   path,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	initLedgerMetrics()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cferrors.New(cferrors.CodeInternal, "create ledger directory", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		h.logger.Info("ledger.create", slog.String("path", path))
		if err := h.store(NewDocument()); err != nil {
			return nil, err
		}
		return h, nil
	}
	if err != nil {
		return nil, cferrors.New(cferrors.CodeInternal, "read ledger", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		h.logger.Warn("ledger.corrupt.recreate",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		corruptCounter.Add(contextless, 1)
		if err := h.store(NewDocument()); err != nil {
			return nil, err
		}
		return h, nil
	}
	if doc.repair() {
		h.logger.Info("ledger.repair", slog.String("path", path))
		repairCounter.Add(contextless, 1)
		if err := h.store(&doc); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Path returns the ledger file location.
func (h *Hub) Path() string {
	return h.path
}

// load reads and decodes the ledger. Callers hold h.mu.
func (h *Hub) load() (*Document, error) {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, cferrors.New(cferrors.CodeInternal, "read ledger", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cferrors.New(cferrors.CodeLedgerCorrupt,
			fmt.Sprintf("ledger %s is not valid JSON", h.path), err)
	}
	doc.repair()
	return &doc, nil
}

// store encodes and atomically replaces the ledger. Callers hold h.mu.
func (h *Hub) store(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return cferrors.New(cferrors.CodeInternal, "encode ledger", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(h.path), ".ledger-*.json")
	if err != nil {
		return cferrors.New(cferrors.CodeInternal, "create ledger temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return cferrors.New(cferrors.CodeInternal, "write ledger temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return cferrors.New(cferrors.CodeInternal, "close ledger temp file", err)
	}
	if err := os.Rename(tmpName, h.path); err != nil {
		os.Remove(tmpName)
		return cferrors.New(cferrors.CodeInternal, "replace ledger", err)
	}
	writeCounter.Add(contextless, 1)
	return nil
}

// update runs fn against the current document and persists the result
// if fn succeeds.
func (h *Hub) update(op string, fn func(*Document) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, err := h.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	if err := h.store(doc); err != nil {
		return err
	}
	opCounter.Add(contextless, 1, metric.WithAttributes(attribute.String("operation", op)))
	return nil
}

// view runs fn against a freshly loaded document without writing.
func (h *Hub) view(fn func(*Document)) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	doc, err := h.load()
	if err != nil {
		return err
	}
	fn(doc)
	return nil
}

// Snapshot returns the current document. The copy is private to the
// caller.
func (h *Hub) Snapshot() (*Document, error) {
	var snap *Document
	err := h.view(func(doc *Document) { snap = doc })
	return snap, err
}

// SendMessage appends a message from one agent to another and returns
// the stored record.
func (h *Hub) SendMessage(from, to, body, msgType string) (Message, error) {
	if from == "" || to == "" {
		return Message{}, cferrors.New(cferrors.CodeInvalidInput, "message needs sender and recipient", nil)
	}
	if msgType == "" {
		msgType = MessageInfo
	}
	msg := Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Body:      body,
		Type:      msgType,
		Timestamp: h.now().UTC(),
	}
	err := h.update("send_message", func(doc *Document) error {
		doc.Messages = append(doc.Messages, msg)
		return nil
	})
	if err != nil {
		return Message{}, err
	}
	h.logger.Debug("ledger.message.sent",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("type", msgType),
	)
	return msg, nil
}

// Messages returns messages addressed to agent, optionally filtered to
// unread ones. An empty agent returns everything.
func (h *Hub) Messages(agent string, unreadOnly bool) ([]Message, error) {
	var out []Message
	err := h.view(func(doc *Document) {
		for _, m := range doc.Messages {
			if agent != "" && m.To != agent {
				continue
			}
			if unreadOnly && m.Read {
				continue
			}
			out = append(out, m)
		}
	})
	return out, err
}

// MarkRead flags the given message IDs as read. Unknown IDs are
// ignored so agents can re-acknowledge safely.
func (h *Hub) MarkRead(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return h.update("mark_read", func(doc *Document) error {
		for i := range doc.Messages {
			if want[doc.Messages[i].ID] {
				doc.Messages[i].Read = true
			}
		}
		return nil
	})
}

// UpdateStatus records an agent's progress, trimming the board to the
// most recent entries.
func (h *Hub) UpdateStatus(agent, state string, details map[string]any) error {
	if agent == "" {
		return cferrors.New(cferrors.CodeInvalidInput, "status update needs an agent", nil)
	}
	upd := StatusUpdate{
		Agent:     agent,
		State:     state,
		Details:   details,
		Timestamp: h.now().UTC(),
	}
	return h.update("update_status", func(doc *Document) error {
		doc.StatusUpdates = append(doc.StatusUpdates, upd)
		if n := len(doc.StatusUpdates); n > maxStatusUpdates {
			doc.StatusUpdates = doc.StatusUpdates[n-maxStatusUpdates:]
		}
		return nil
	})
}

// StatusUpdates returns the status board, oldest first.
func (h *Hub) StatusUpdates() ([]StatusUpdate, error) {
	var out []StatusUpdate
	err := h.view(func(doc *Document) {
		out = append(out, doc.StatusUpdates...)
	})
	return out, err
}

// StatusUpdatesFor returns one agent's status entries, oldest first.
func (h *Hub) StatusUpdatesFor(agent string) ([]StatusUpdate, error) {
	var out []StatusUpdate
	err := h.view(func(doc *Document) {
		for _, upd := range doc.StatusUpdates {
			if upd.Agent == agent {
				out = append(out, upd)
			}
		}
	})
	return out, err
}

// SetContext stores a value in the shared context under key.
func (h *Hub) SetContext(key string, value any) error {
	if key == "" {
		return cferrors.New(cferrors.CodeInvalidInput, "context key must not be empty", nil)
	}
	return h.update("set_context", func(doc *Document) error {
		doc.SharedContext[key] = value
		return nil
	})
}

// Context returns the shared context value for key, and whether it
// was present.
func (h *Hub) Context(key string) (any, bool, error) {
	var (
		val any
		ok  bool
	)
	err := h.view(func(doc *Document) {
		val, ok = doc.SharedContext[key]
	})
	return val, ok, err
}

// ContextAll returns a copy of the whole shared context map.
func (h *Hub) ContextAll() (map[string]any, error) {
	out := make(map[string]any)
	err := h.view(func(doc *Document) {
		for k, v := range doc.SharedContext {
			out[k] = v
		}
	})
	return out, err
}

// RegisterIntegrationPoint records a contract an agent exposes.
func (h *Hub) RegisterIntegrationPoint(agent, component string, contract map[string]any) error {
	if agent == "" || component == "" {
		return cferrors.New(cferrors.CodeInvalidInput, "integration point needs agent and component", nil)
	}
	pt := IntegrationPoint{
		Agent:     agent,
		Component: component,
		Contract:  contract,
		Timestamp: h.now().UTC(),
	}
	return h.update("register_integration", func(doc *Document) error {
		doc.IntegrationPoints = append(doc.IntegrationPoints, pt)
		return nil
	})
}

// ReportConflict files a new open conflict and returns it.
func (h *Hub) ReportConflict(reporter, description string) (Conflict, error) {
	if reporter == "" || description == "" {
		return Conflict{}, cferrors.New(cferrors.CodeInvalidInput, "conflict needs reporter and description", nil)
	}
	c := Conflict{
		ID:          uuid.NewString(),
		Reporter:    reporter,
		Description: description,
		Status:      ConflictOpen,
		ReportedAt:  h.now().UTC(),
	}
	err := h.update("report_conflict", func(doc *Document) error {
		doc.Conflicts = append(doc.Conflicts, c)
		return nil
	})
	if err != nil {
		return Conflict{}, err
	}
	h.logger.Warn("ledger.conflict.reported",
		slog.String("reporter", reporter),
		slog.String("conflict_id", c.ID),
	)
	return c, nil
}

// ResolveConflict closes an open conflict with a resolution note.
func (h *Hub) ResolveConflict(id, resolution string) error {
	return h.update("resolve_conflict", func(doc *Document) error {
		for i := range doc.Conflicts {
			if doc.Conflicts[i].ID != id {
				continue
			}
			if doc.Conflicts[i].Status == ConflictResolved {
				return nil
			}
			now := h.now().UTC()
			doc.Conflicts[i].Status = ConflictResolved
			doc.Conflicts[i].Resolution = resolution
			doc.Conflicts[i].ResolvedAt = &now
			return nil
		}
		return cferrors.New(cferrors.CodeNotFound,
			fmt.Sprintf("conflict %s not found", id), nil)
	})
}

// contextless backs metric recordings for the Hub's synchronous file
// operations, which do not take a context.
var contextless = context.Background()

var (
	ledgerMetricsOnce sync.Once
	writeCounter      metric.Int64Counter
	opCounter         metric.Int64Counter
	repairCounter     metric.Int64Counter
	corruptCounter    metric.Int64Counter
)

func initLedgerMetrics() {
	ledgerMetricsOnce.Do(func() {
		meter := otel.Meter("crewforge/ledger")
		writeCounter, _ = meter.Int64Counter("crewforge.ledger.write.count")
		opCounter, _ = meter.Int64Counter("crewforge.ledger.op.count")
		repairCounter, _ = meter.Int64Counter("crewforge.ledger.repair.count")
		corruptCounter, _ = meter.Int64Counter("crewforge.ledger.corrupt.count")
	})
}
