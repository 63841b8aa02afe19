package crew

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crewforge/crewforge/pkg/agent"
	"github.com/crewforge/crewforge/pkg/core"
	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/roster"
)

// Manager watches the ledger for pending lock requests and decides
// them, either by delegating to the lock-manager agent or by
// approving uncontested requests directly.
type Manager struct {
	hub      *ledger.Hub
	persona  roster.Persona
	agent    *agent.Agent
	interval time.Duration
	emitter  core.EventEmitter
	logger   *slog.Logger
}

// ManagerConfig assembles a Manager. Agent is optional; without one
// the manager runs in auto mode.
type ManagerConfig struct {
	Hub      *ledger.Hub
	Persona  roster.Persona
	Agent    *agent.Agent
	Interval time.Duration
	Emitter  core.EventEmitter
	Logger   *slog.Logger
}

// NewManager builds a lock manager loop.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Emitter == nil {
		cfg.Emitter = core.NoopEventEmitter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		hub:      cfg.Hub,
		persona:  cfg.Persona,
		agent:    cfg.Agent,
		interval: cfg.Interval,
		emitter:  cfg.Emitter,
		logger:   cfg.Logger,
	}
}

// Run polls for pending requests until ctx is cancelled. Cancellation
// is the normal way to stop the loop and is not an error.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("crew.lock_manager.start",
		slog.String("agent", m.persona.Name),
		slog.Bool("llm", m.agent != nil),
		slog.Duration("interval", m.interval),
	)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("crew.lock_manager.stop")
			return nil
		case <-ticker.C:
			if err := m.sweep(ctx); err != nil {
				m.logger.Warn("crew.lock_manager.sweep_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// sweep decides the currently pending requests, if any.
func (m *Manager) sweep(ctx context.Context) error {
	pending, err := m.hub.PendingLockRequests()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	if m.agent != nil {
		return m.decideViaAgent(ctx, pending)
	}
	return m.decideAuto(ctx, pending)
}

// decideViaAgent hands the pending queue to the lock-manager persona.
func (m *Manager) decideViaAgent(ctx context.Context, pending []ledger.LockRequest) error {
	var b strings.Builder
	b.WriteString("Decide the following pending file lock requests using the lock_manager tool. " +
		"Approve requests for free paths; deny conflicting requests with a clear reason.\n")
	for _, r := range pending {
		fmt.Fprintf(&b, "- %s wants %s (ID: %s)", r.Agent, r.Path, r.ID)
		if r.Reason != "" {
			fmt.Fprintf(&b, " because: %s", r.Reason)
		}
		b.WriteString("\n")
	}
	task := core.NewTask(m.persona.Name, b.String())
	return m.agent.Run(ctx, task)
}

// decideAuto approves every request whose path is free. Contested
// requests stay pending until the holder releases or the request
// expires.
func (m *Manager) decideAuto(ctx context.Context, pending []ledger.LockRequest) error {
	granted, err := m.hub.ApproveAllPending("auto-approved: path is free")
	if err != nil {
		return err
	}
	if granted > 0 {
		m.logger.Info("crew.lock_manager.approved", slog.Int("granted", granted))
		m.emitter.Emit(ctx, core.NewEvent(core.EventLockDecided, m.persona.Name, "",
			map[string]any{"granted": granted, "pending": len(pending) - granted}))
	}
	return nil
}
