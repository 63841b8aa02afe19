package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/crewforge/crewforge/pkg/archive"
	"github.com/crewforge/crewforge/pkg/config"
	"github.com/crewforge/crewforge/pkg/ledger"
)

func runLedger(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) == 0 {
		fatal(fmt.Errorf("usage: crewforge ledger <messages|locks|status|context|conflicts|tail|history>"))
	}

	switch args[0] {
	case "messages":
		cmd := flag.NewFlagSet("ledger messages", flag.ContinueOnError)
		agent := cmd.String("agent", "", "Only messages addressed to this agent")
		unread := cmd.Bool("unread", false, "Only unread messages")
		if err := cmd.Parse(args[1:]); err != nil {
			fatal(err)
		}
		doc := loadDocument(cfg.Ledger.Path)
		var messages []ledger.Message
		for _, msg := range doc.Messages {
			if *agent != "" && msg.To != *agent && msg.To != "all" {
				continue
			}
			if *unread && msg.Read {
				continue
			}
			messages = append(messages, msg)
		}
		if global.JSON {
			printJSON(messages)
			return
		}
		writer := newTabWriter()
		writeRow(writer, "TIME", "FROM", "TO", "TYPE", "READ", "BODY")
		for _, msg := range messages {
			writeRow(writer,
				formatTime(msg.Timestamp),
				msg.From,
				msg.To,
				msg.Type,
				fmt.Sprintf("%t", msg.Read),
				truncateCell(msg.Body, 80),
			)
		}
		_ = writer.Flush()

	case "locks":
		ensureNoArgs(args[1:])
		doc := loadDocument(cfg.Ledger.Path)
		if global.JSON {
			printJSON(map[string]any{
				"file_locks":         doc.FileLocks,
				"file_lock_requests": doc.LockRequests,
			})
			return
		}
		writer := newTabWriter()
		writeRow(writer, "PATH", "OWNER", "ACQUIRED")
		paths := make([]string, 0, len(doc.FileLocks))
		for path := range doc.FileLocks {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			lock := doc.FileLocks[path]
			writeRow(writer, path, lock.Owner, formatTime(lock.AcquiredAt))
		}
		_ = writer.Flush()
		if len(doc.LockRequests) > 0 {
			fmt.Println()
			writer = newTabWriter()
			writeRow(writer, "REQUEST_ID", "AGENT", "PATH", "STATUS", "DECISION")
			for _, req := range doc.LockRequests {
				writeRow(writer, req.ID, req.Agent, req.Path, string(req.Status), req.Decision)
			}
			_ = writer.Flush()
		}

	case "status":
		cmd := flag.NewFlagSet("ledger status", flag.ContinueOnError)
		agent := cmd.String("agent", "", "Only this agent's status entries")
		if err := cmd.Parse(args[1:]); err != nil {
			fatal(err)
		}
		hub := openHub(cfg.Ledger.Path)
		var updates []ledger.StatusUpdate
		var err error
		if *agent != "" {
			updates, err = hub.StatusUpdatesFor(*agent)
		} else {
			updates, err = hub.StatusUpdates()
		}
		if err != nil {
			fatal(err)
		}
		if global.JSON {
			printJSON(updates)
			return
		}
		writer := newTabWriter()
		writeRow(writer, "TIME", "AGENT", "STATUS")
		for _, update := range updates {
			writeRow(writer, formatTime(update.Timestamp), update.Agent, truncateCell(update.State, 90))
		}
		_ = writer.Flush()

	case "context":
		ensureNoArgs(args[1:])
		shared, err := openHub(cfg.Ledger.Path).ContextAll()
		if err != nil {
			fatal(err)
		}
		if global.JSON {
			printJSON(shared)
			return
		}
		keys := make([]string, 0, len(shared))
		for key := range shared {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		writer := newTabWriter()
		writeRow(writer, "KEY", "VALUE")
		for _, key := range keys {
			writeRow(writer, key, truncateCell(fmt.Sprintf("%v", shared[key]), 90))
		}
		_ = writer.Flush()

	case "conflicts":
		ensureNoArgs(args[1:])
		doc := loadDocument(cfg.Ledger.Path)
		if global.JSON {
			printJSON(doc.Conflicts)
			return
		}
		writer := newTabWriter()
		writeRow(writer, "ID", "REPORTER", "STATUS", "DESCRIPTION", "RESOLUTION")
		for _, conflict := range doc.Conflicts {
			writeRow(writer, conflict.ID, conflict.Reporter, string(conflict.Status),
				truncateCell(conflict.Description, 60), truncateCell(conflict.Resolution, 40))
		}
		_ = writer.Flush()

	case "tail":
		cmd := flag.NewFlagSet("ledger tail", flag.ContinueOnError)
		interval := cmd.Duration("interval", cfg.Ledger.PollInterval, "Poll interval")
		if err := cmd.Parse(args[1:]); err != nil {
			fatal(err)
		}
		tailLedger(ctx, cfg.Ledger.Path, *interval, global.JSON)

	case "history":
		cmd := flag.NewFlagSet("ledger history", flag.ContinueOnError)
		runID := cmd.String("run", "", "Show events for one run")
		limit := cmd.Int("limit", 20, "Max rows")
		if err := cmd.Parse(args[1:]); err != nil {
			fatal(err)
		}
		showHistory(ctx, global, cfg, *runID, *limit)

	default:
		fatal(fmt.Errorf("unknown ledger command %q", args[0]))
	}
}

func openHub(path string) *ledger.Hub {
	if _, err := os.Stat(path); err != nil {
		fatal(fmt.Errorf("no ledger at %s; is a session running?", path))
	}
	hub, err := ledger.Open(path)
	if err != nil {
		fatal(err)
	}
	return hub
}

func loadDocument(path string) *ledger.Document {
	doc, err := openHub(path).Snapshot()
	if err != nil {
		fatal(err)
	}
	return doc
}

// tailLedger prints a line whenever the ledger gains a message or a
// status update, until interrupted.
func tailLedger(ctx context.Context, path string, interval time.Duration, asJSON bool) {
	tailer := ledger.NewTailer(path, ledger.WithTailInterval(interval))

	seenMessages := 0
	seenUpdates := 0
	emit := func(doc *ledger.Document) {
		if doc == nil {
			return
		}
		for _, msg := range doc.Messages[min(seenMessages, len(doc.Messages)):] {
			if asJSON {
				payload, _ := json.Marshal(msg)
				fmt.Println(string(payload))
			} else {
				fmt.Printf("%s %s → %s [%s] %s\n",
					msg.Timestamp.Format("15:04:05"), msg.From, msg.To, msg.Type, msg.Body)
			}
		}
		for _, update := range doc.StatusUpdates[min(seenUpdates, len(doc.StatusUpdates)):] {
			if asJSON {
				payload, _ := json.Marshal(update)
				fmt.Println(string(payload))
			} else {
				fmt.Printf("%s %s status: %s\n",
					update.Timestamp.Format("15:04:05"), update.Agent, update.State)
			}
		}
		seenMessages = len(doc.Messages)
		seenUpdates = len(doc.StatusUpdates)
	}

	emit(tailer.Snapshot())
	tailer.OnChange(emit)
	tailer.Start(ctx)
	defer tailer.Stop()
	<-ctx.Done()
}

func showHistory(ctx context.Context, global globalFlags, cfg *config.Config, runID string, limit int) {
	if !cfg.Archive.Enabled {
		fatal(fmt.Errorf("archive is disabled; enable archive.enabled to record history"))
	}
	store, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	if runID == "" {
		runs, err := store.Runs(ctx, limit)
		if err != nil {
			fatal(err)
		}
		if global.JSON {
			printJSON(runs)
			return
		}
		writer := newTabWriter()
		writeRow(writer, "RUN_ID", "STATUS", "AGENTS", "STARTED", "FINISHED")
		for _, run := range runs {
			writeRow(writer, run.RunID, run.Status,
				fmt.Sprintf("%d", len(run.Agents)),
				formatTime(run.StartedAt), formatTime(run.FinishedAt))
		}
		_ = writer.Flush()
		return
	}

	events, err := store.Events(ctx, archive.EventFilter{RunID: runID, Limit: limit})
	if err != nil {
		fatal(err)
	}
	if global.JSON {
		printJSON(events)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "TIME", "EVENT", "AGENT", "TASK")
	for _, event := range events {
		writeRow(writer, formatTime(event.CreatedAt), event.Type, event.Agent, event.TaskID)
	}
	_ = writer.Flush()
}
