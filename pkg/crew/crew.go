// Package crew assembles a roster of agents over one shared ledger
// and runs them in parallel: worker agents execute their persona
// tasks while the lock manager decides file lock requests as they
// appear.
package crew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crewforge/crewforge/pkg/agent"
	"github.com/crewforge/crewforge/pkg/core"
	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/llm"
	"github.com/crewforge/crewforge/pkg/memory"
	"github.com/crewforge/crewforge/pkg/roster"
	"github.com/crewforge/crewforge/pkg/tools"
)

// Config assembles a Crew.
type Config struct {
	Hub      *ledger.Hub
	Roster   *roster.Roster
	Provider llm.Provider

	Model       string
	Temperature float64

	// Workspace is where write_file lands deliverables.
	Workspace string

	// LockApproval routes file writes through the lock-request
	// workflow decided by the lock manager.
	LockApproval bool

	// ManagerLLM lets the lock-manager persona decide requests via
	// the model; otherwise free requests are approved automatically.
	ManagerLLM bool

	// ManagerInterval is how often the lock manager checks for
	// pending requests. Defaults to 2 seconds.
	ManagerInterval time.Duration

	// MemoryDir, when set, persists agent transcripts as files.
	MemoryDir string

	Emitter core.EventEmitter
	Logger  *slog.Logger
}

// Crew is an assembled team plus its lock manager.
type Crew struct {
	hub     *ledger.Hub
	agents  []*agent.Agent
	tasks   []*core.Task
	manager *Manager
	logger  *slog.Logger
}

// New builds agents for every roster persona: workers get the full
// collaboration tool belt, the lock manager gets the decision tools.
func New(cfg Config) (*Crew, error) {
	if cfg.Hub == nil {
		return nil, errors.New("crew needs a ledger hub")
	}
	if cfg.Roster == nil || cfg.Roster.Len() == 0 {
		return nil, errors.New("crew needs a roster")
	}
	if cfg.Provider == nil {
		return nil, errors.New("crew needs an LLM provider")
	}
	if cfg.ManagerInterval <= 0 {
		cfg.ManagerInterval = 2 * time.Second
	}
	if cfg.Emitter == nil {
		cfg.Emitter = core.NoopEventEmitter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Crew{hub: cfg.Hub, logger: cfg.Logger}

	for _, persona := range cfg.Roster.Workers() {
		belt := []tools.Tool{
			tools.NewWriteFile(tools.WriteFileConfig{
				Hub:       cfg.Hub,
				Workspace: cfg.Workspace,
				Agent:     persona.Name,
				Approval:  cfg.LockApproval,
			}),
			tools.NewTeamMessage(cfg.Hub, persona.Name),
			tools.NewIntegration(cfg.Hub, persona.Name),
			tools.NewProjectStatus(cfg.Hub),
		}
		a, err := c.buildAgent(cfg, persona, belt)
		if err != nil {
			return nil, err
		}
		c.agents = append(c.agents, a)
		c.tasks = append(c.tasks, core.NewTask(persona.Name, taskBrief(persona)))
	}

	managers := cfg.Roster.LockManagers()
	if len(managers) > 0 {
		persona := managers[0]
		var decider *agent.Agent
		if cfg.ManagerLLM {
			belt := []tools.Tool{
				tools.NewLockManager(cfg.Hub, persona.Name),
				tools.NewProjectStatus(cfg.Hub),
			}
			var err error
			decider, err = c.buildAgent(cfg, persona, belt)
			if err != nil {
				return nil, err
			}
		}
		c.manager = NewManager(ManagerConfig{
			Hub:      cfg.Hub,
			Persona:  persona,
			Agent:    decider,
			Interval: cfg.ManagerInterval,
			Emitter:  cfg.Emitter,
			Logger:   cfg.Logger,
		})
	}

	return c, nil
}

func (c *Crew) buildAgent(cfg Config, persona roster.Persona, belt []tools.Tool) (*agent.Agent, error) {
	opts := []agent.Option{
		agent.WithProvider(cfg.Provider),
		agent.WithModel(cfg.Model),
		agent.WithTemperature(cfg.Temperature),
		agent.WithHub(cfg.Hub),
		agent.WithTools(belt...),
		agent.WithEmitter(cfg.Emitter),
		agent.WithLogger(cfg.Logger),
	}
	if cfg.MemoryDir != "" {
		store, err := memory.NewFileConversation(cfg.MemoryDir, memory.Config{
			TruncationStrategy: &memory.WindowStrategy{MaxMessages: 100, KeepSystemMessages: true},
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, agent.WithMemory(store))
	}
	a, err := agent.New(persona, opts...)
	if err != nil {
		return nil, fmt.Errorf("build agent %s: %w", persona.Name, err)
	}
	return a, nil
}

// taskBrief renders the persona's standing task as the user turn.
func taskBrief(p roster.Persona) string {
	if p.Task != "" {
		return p.Task
	}
	return p.Goal
}

// Agents returns the worker agents.
func (c *Crew) Agents() []*agent.Agent {
	return c.agents
}

// Tasks returns the tasks the workers will run, for status reporting.
func (c *Crew) Tasks() []*core.Task {
	return c.tasks
}

// Run executes all worker agents in parallel and keeps the lock
// manager deciding requests until the workers finish. The first
// worker error cancels the rest.
func (c *Crew) Run(ctx context.Context) error {
	ctx, runID := core.EnsureRunID(ctx)
	c.logger.Info("crew.run.start",
		slog.String("run_id", runID),
		slog.Int("agents", len(c.agents)),
	)

	var (
		mgrErr  error
		mgrDone chan struct{}
		stopMgr context.CancelFunc
	)
	if c.manager != nil {
		var mgrCtx context.Context
		mgrCtx, stopMgr = context.WithCancel(ctx)
		defer stopMgr()
		mgrDone = make(chan struct{})
		go func() {
			defer close(mgrDone)
			mgrErr = c.manager.Run(mgrCtx)
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range c.agents {
		g.Go(func() error {
			return a.Run(gctx, c.tasks[i])
		})
	}
	err := g.Wait()

	if c.manager != nil {
		stopMgr()
		<-mgrDone
	}

	if err != nil {
		c.logger.Error("crew.run.failed", slog.String("error", err.Error()))
		return err
	}
	if mgrErr != nil {
		return mgrErr
	}
	c.logger.Info("crew.run.complete", slog.String("run_id", runID))
	return nil
}
