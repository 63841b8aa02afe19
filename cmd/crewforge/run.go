package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/crewforge/crewforge/pkg/archive"
	"github.com/crewforge/crewforge/pkg/config"
	"github.com/crewforge/crewforge/pkg/core"
	"github.com/crewforge/crewforge/pkg/crew"
	"github.com/crewforge/crewforge/pkg/dashboard"
	"github.com/crewforge/crewforge/pkg/launcher"
	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/llm"
	"github.com/crewforge/crewforge/pkg/llm/gemini"
	"github.com/crewforge/crewforge/pkg/roster"
	"github.com/crewforge/crewforge/pkg/runtime"
	"github.com/crewforge/crewforge/pkg/telemetry"
)

func runSession(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	modeArg := ""
	if len(args) > 0 {
		modeArg = args[0]
		ensureNoArgs(args[1:])
	}
	mode, err := launcher.ParseMode(modeArg)
	if err != nil {
		fatal(err)
	}

	req := launcher.Requirements{
		NeedAPIKey: mode != launcher.ModeDashboard && !global.Mock && cfg.LLM.Provider != "mock" && cfg.LLM.APIKey == "",
		Workspace:  cfg.Workspace.Root,
	}
	if err := req.Check(); err != nil {
		fatal(err)
	}

	switch mode {
	case launcher.ModeDev:
		if err := runAgents(ctx, global, cfg); err != nil {
			fatal(err)
		}
	case launcher.ModeDashboard:
		if err := runDashboard(ctx, cfg, false); err != nil {
			fatal(err)
		}
	case launcher.ModeFull:
		if err := runFull(ctx, global, cfg); err != nil {
			fatal(err)
		}
	}
}

// runAgents runs the crew in the foreground until every worker
// finishes or the first one fails.
func runAgents(ctx context.Context, global globalFlags, cfg *config.Config) error {
	shutdown, err := telemetry.InitWithConfig("crewforge", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
		return err
	}
	hub, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}

	crewRoster := roster.Builtin()
	if global.Personas != "" {
		if err := crewRoster.MergeFile(global.Personas); err != nil {
			return err
		}
	}

	provider, err := buildProvider(ctx, global, cfg)
	if err != nil {
		return err
	}

	ctx, runID := core.EnsureRunID(ctx)

	var emitter core.EventEmitter = core.NoopEventEmitter{}
	var store *archive.Store
	if cfg.Archive.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Archive.Path), 0o755); err != nil {
			return err
		}
		store, err = archive.Open(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		agents := crewRoster.Names()
		if err := store.BeginRun(ctx, runID, agents); err != nil {
			return err
		}
		emitter = archive.NewSink(store, runID, nil)
	}

	rt := runtime.NewLocal()
	rt.SetLockSweep(hub, cfg.Ledger.PollInterval, cfg.Ledger.LockTTL, cfg.Ledger.RequestTTL)
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer rt.Stop(context.Background())

	team, err := crew.New(crew.Config{
		Hub:          hub,
		Roster:       crewRoster,
		Provider:     provider,
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		Workspace:    cfg.Workspace.Root,
		LockApproval: cfg.Features.LockApproval,
		ManagerLLM:   cfg.Features.LockApproval && !global.Mock,
		MemoryDir:    filepath.Join(cfg.Workspace.Root, "shared", "memory"),
		Emitter:      emitter,
	})
	if err != nil {
		return err
	}

	slog.Info("session.start",
		slog.String("run_id", runID),
		slog.String("project", cfg.Workspace.ProjectTitle),
		slog.String("ledger", cfg.Ledger.Path),
	)
	runErr := team.Run(ctx)

	if store != nil {
		status := archive.RunStatusCompleted
		if runErr != nil {
			status = archive.RunStatusFailed
		}
		if doc, err := hub.Snapshot(); err == nil {
			_ = store.SnapshotLedger(context.Background(), runID, doc)
		}
		_ = store.FinishRun(context.Background(), runID, status)
	}
	return runErr
}

// runDashboard tails the ledger in a terminal UI. In full mode the
// ledger may not exist yet, so the caller asks us to wait for it.
func runDashboard(ctx context.Context, cfg *config.Config, waitForLedger bool) error {
	if waitForLedger {
		if err := launcher.WaitForLedger(ctx, cfg.Ledger.Path,
			launcher.DefaultWaitInterval, launcher.DefaultWaitAttempts); err != nil {
			return err
		}
	}
	tailer := ledger.NewTailer(cfg.Ledger.Path,
		ledger.WithTailInterval(cfg.Ledger.PollInterval))
	tailer.Start(ctx)
	defer tailer.Stop()

	model := dashboard.NewFromTailer(tailer, dashboard.WithRefresh(cfg.Dashboard.Refresh))
	return dashboard.Run(model)
}

// runFull launches the agents as a background child process and runs
// the dashboard in the foreground, the original "full launch" mode.
func runFull(ctx context.Context, global globalFlags, cfg *config.Config) error {
	self, err := os.Executable()
	if err != nil {
		return err
	}
	args := []string{"run", "dev"}
	if global.ConfigPath != "" {
		args = append([]string{"--config", global.ConfigPath}, args...)
	}
	if global.Personas != "" {
		args = append([]string{"--personas", global.Personas}, args...)
	}
	if global.Mock {
		args = append([]string{"--mock"}, args...)
	}

	logPath := filepath.Join(cfg.Workspace.Root, "shared", "agents.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()

	agents, err := launcher.Start(ctx, self, args, launcher.WithOutput(logFile, logFile))
	if err != nil {
		return err
	}
	fmt.Printf("agents started in background (pid %d, log %s)\n", agents.Pid(), logPath)

	dashErr := runDashboard(ctx, cfg, true)

	select {
	case <-agents.Done():
	default:
		fmt.Println("dashboard closed; stopping agents...")
		_ = agents.Stop(10 * time.Second)
	}
	return dashErr
}

func buildProvider(ctx context.Context, global globalFlags, cfg *config.Config) (llm.Provider, error) {
	if global.Mock || cfg.LLM.Provider == "mock" {
		return &llm.MockProvider{Response: "All assigned work is complete."}, nil
	}
	switch cfg.LLM.Provider {
	case "", "gemini":
		return gemini.New(ctx, cfg.LLM.APIKey, gemini.WithModel(cfg.LLM.Model))
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
