// Package runtime provides the in-process execution environment for
// agents, plus the background sweeper that ages out stale file locks
// and undecided lock requests.
package runtime

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/crewforge/crewforge/pkg/core"
	"github.com/crewforge/crewforge/pkg/ledger"
)

// Runtime defines the minimal lifecycle for executing agents.
type Runtime interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Run(ctx context.Context, agent core.Agent, task *core.Task) error
}

// LocalRuntime runs agents in-process.
type LocalRuntime struct {
	started bool
	tracer  trace.Tracer
	logger  *slog.Logger

	// lock sweeper state
	sweepHub      *ledger.Hub
	sweepInterval sweepConfig
	sweepCancel   context.CancelFunc
	sweepDone     chan struct{}
}

// NewLocal creates a LocalRuntime.
func NewLocal() *LocalRuntime {
	return &LocalRuntime{logger: slog.Default()}
}

// Start marks the runtime ready and launches the lock sweeper if one
// is configured.
func (r *LocalRuntime) Start(_ context.Context) error {
	r.started = true
	if r.tracer == nil {
		r.tracer = otel.Tracer("crewforge/runtime")
	}
	r.startLockSweeper()
	return nil
}

// Stop halts the sweeper and marks the runtime stopped.
func (r *LocalRuntime) Stop(_ context.Context) error {
	r.stopLockSweeper()
	r.started = false
	return nil
}

// Run executes one agent task under a span.
func (r *LocalRuntime) Run(ctx context.Context, agent core.Agent, task *core.Task) error {
	if !r.started {
		return errors.New("runtime not started")
	}
	ctx, runID := core.EnsureRunID(ctx)
	if r.tracer == nil {
		r.tracer = otel.Tracer("crewforge/runtime")
	}
	log := r.logger
	log.Info("runtime.run.start",
		slog.String("agent", agent.Name()),
		slog.String("run_id", runID),
	)
	ctx, span := r.tracer.Start(ctx, "Runtime.Run", trace.WithAttributes(
		attribute.String("agent.name", agent.Name()),
		attribute.String("task.id", task.ID),
	))
	defer span.End()
	traceID, spanID := traceIDs(span)

	if err := agent.Run(ctx, task); err != nil {
		log.Error("runtime.run.error",
			slog.String("agent", agent.Name()),
			slog.String("run_id", runID),
			slog.String("trace_id", traceID),
			slog.String("span_id", spanID),
			slog.String("error", err.Error()),
		)
		return err
	}
	log.Info("runtime.run.complete",
		slog.String("agent", agent.Name()),
		slog.String("run_id", runID),
		slog.String("trace_id", traceID),
		slog.String("span_id", spanID),
	)
	return nil
}

func traceIDs(span trace.Span) (string, string) {
	sc := span.SpanContext()
	return sc.TraceID().String(), sc.SpanID().String()
}
