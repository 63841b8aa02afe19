package archive

import (
	"context"
	"log/slog"

	"github.com/crewforge/crewforge/pkg/core"
)

// Sink adapts a Store to core.EventEmitter so agent and crew events flow
// into the archive as they happen. Write failures are logged, never
// propagated: archival must not break a running crew.
type Sink struct {
	store  *Store
	runID  string
	next   core.EventEmitter
	logger *slog.Logger
}

// NewSink binds the store to a run. When next is non-nil every event is
// forwarded to it after archiving.
func NewSink(store *Store, runID string, next core.EventEmitter) *Sink {
	if next == nil {
		next = core.NoopEventEmitter{}
	}
	return &Sink{store: store, runID: runID, next: next, logger: slog.Default()}
}

// Emit archives the event and forwards it.
func (s *Sink) Emit(ctx context.Context, event core.Event) {
	err := s.store.RecordEvent(ctx, Event{
		RunID:     s.runID,
		Type:      string(event.Type),
		Agent:     event.Agent,
		TaskID:    event.TaskID,
		Payload:   event.Payload,
		CreatedAt: event.Timestamp,
	})
	if err != nil {
		s.logger.Warn("archive.event.failed",
			slog.String("type", string(event.Type)),
			slog.Any("error", err),
		)
	}
	s.next.Emit(ctx, event)
}

var _ core.EventEmitter = (*Sink)(nil)
