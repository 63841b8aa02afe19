package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/crewforge/crewforge/pkg/core"
	cferrors "github.com/crewforge/crewforge/pkg/errors"
	"github.com/crewforge/crewforge/pkg/llm"
	"github.com/crewforge/crewforge/pkg/memory"
	"github.com/crewforge/crewforge/pkg/telemetry"
)

const tracerName = "crewforge/agent"

// Run executes the task in a bounded tool-calling loop. Each
// iteration drains the agent's mailbox, asks the model for the next
// step, and executes any requested tool calls. The loop ends when the
// model answers without tool calls or the persona's iteration budget
// runs out.
func (a *Agent) Run(ctx context.Context, task *core.Task) error {
	initAgentMetrics()
	ctx, runID := core.EnsureRunID(ctx)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "agent.run",
		trace.WithAttributes(telemetry.AgentAttributes(a.Name(), a.Role(), runID)...),
		trace.WithAttributes(attribute.Int(telemetry.AttrAgentMaxIter, a.persona.MaxIterations)),
	)
	defer span.End()

	log := a.logger.With(
		slog.String("agent", a.Name()),
		slog.String("run_id", runID),
		slog.String("task_id", task.ID),
	)

	task.Start()
	a.reportStatus(log, fmt.Sprintf("Started: %s", firstLine(task.Goal)))
	a.emitter.Emit(ctx, core.NewEvent(core.EventTaskStarted, a.Name(), task.ID, nil))
	log.Info("agent.task.start", slog.String("goal", firstLine(task.Goal)))

	// Transcripts are keyed per run so a fresh session never replays
	// a previous run's context.
	session := runID + "/" + a.Name()
	messages := a.openingMessages(ctx, session, task)
	defs := a.definitions()

	var lastContent string
	for iter := 0; iter < a.persona.MaxIterations; iter++ {
		span.SetAttributes(attribute.Int(telemetry.AttrAgentIteration, iter))

		if mail := a.drainMailbox(log); mail != "" {
			messages = a.push(ctx, session, messages, llm.Message{Role: llm.RoleUser, Content: mail})
		}

		resp, err := a.chat(ctx, log, llm.ChatRequest{
			Model:       a.model,
			Messages:    messages,
			Tools:       defs,
			Temperature: a.temperature,
		})
		if err != nil {
			task.Fail(err.Error())
			a.reportStatus(log, "Failed: provider error")
			a.emitter.Emit(ctx, core.NewEvent(core.EventAgentError, a.Name(), task.ID,
				map[string]any{"error": err.Error()}))
			span.RecordError(err)
			return err
		}

		if len(resp.ToolCalls) == 0 {
			lastContent = resp.Content
			messages = a.push(ctx, session, messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
			break
		}

		messages = a.push(ctx, session, messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := a.invokeTool(ctx, log, task, call)
			messages = a.push(ctx, session, messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.Function.Name,
			})
		}
	}

	task.Complete()
	a.reportStatus(log, fmt.Sprintf("Completed: %s", firstLine(lastContent)))
	a.emitter.Emit(ctx, core.NewEvent(core.EventTaskCompleted, a.Name(), task.ID,
		map[string]any{"summary": lastContent}))
	log.Info("agent.task.complete", slog.String("summary", firstLine(lastContent)))
	return nil
}

// openingMessages seeds the conversation: this run's prior transcript
// if any, otherwise the persona brief plus the task.
func (a *Agent) openingMessages(ctx context.Context, session string, task *core.Task) []llm.Message {
	stored, err := a.memory.Messages(ctx, session)
	if err != nil {
		a.logger.Warn("agent.memory.load_failed", slog.String("error", err.Error()))
	}
	if len(stored) > 0 {
		messages := make([]llm.Message, 0, len(stored)+1)
		for _, m := range stored {
			messages = append(messages, llm.Message{
				Role:       llm.Role(m.Role),
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
		return a.push(ctx, session, messages, llm.Message{Role: llm.RoleUser, Content: task.Goal})
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: a.systemPrompt()}}
	a.remember(ctx, session, messages[0])
	return a.push(ctx, session, messages, llm.Message{Role: llm.RoleUser, Content: task.Goal})
}

// push appends to the live conversation and the durable transcript.
func (a *Agent) push(ctx context.Context, session string, messages []llm.Message, msg llm.Message) []llm.Message {
	a.remember(ctx, session, msg)
	return append(messages, msg)
}

func (a *Agent) remember(ctx context.Context, session string, msg llm.Message) {
	err := a.memory.Append(ctx, session, memory.ConversationMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	})
	if err != nil {
		a.logger.Warn("agent.memory.append_failed", slog.String("error", err.Error()))
	}
}

// chat calls the provider under the retry policy with a span per
// attempt cluster.
func (a *Agent) chat(ctx context.Context, log *slog.Logger, req llm.ChatRequest) (*llm.ChatResponse, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "agent.llm.chat",
		trace.WithAttributes(
			attribute.String(telemetry.AttrLLMModel, req.Model),
			attribute.Int("messages", len(req.Messages)),
		),
	)
	defer span.End()

	var resp *llm.ChatResponse
	start := time.Now()
	err := a.retry.Do(ctx, func() error {
		var chatErr error
		resp, chatErr = a.provider.Chat(ctx, req)
		return chatErr
	})
	durationMs := time.Since(start).Seconds() * 1000
	llmLatencyMs.Record(ctx, durationMs)

	if err != nil {
		span.RecordError(err)
		log.Error("agent.llm.error",
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		if cferrors.AsCrewError(err) != nil {
			return nil, err
		}
		return nil, cferrors.New(cferrors.CodeLLMError, "provider chat failed", err)
	}

	span.SetAttributes(
		attribute.Int(telemetry.AttrLLMTokensInput, resp.Usage.PromptTokens),
		attribute.Int(telemetry.AttrLLMTokensOutput, resp.Usage.CompletionTokens),
		attribute.Int("tool_calls", len(resp.ToolCalls)),
	)
	tokensCounter.Add(ctx, int64(resp.Usage.TotalTokens),
		metric.WithAttributes(attribute.String(telemetry.AttrAgentName, a.Name())))
	return resp, nil
}

// invokeTool executes one requested call. Tool failures are reported
// back to the model as text so it can adjust rather than abort.
func (a *Agent) invokeTool(ctx context.Context, log *slog.Logger, task *core.Task, call llm.ToolCall) string {
	name := call.Function.Name
	ctx, span := otel.Tracer(tracerName).Start(ctx, "agent.tool.call",
		trace.WithAttributes(attribute.String(telemetry.AttrToolName, name)),
	)
	defer span.End()

	tool, ok := a.toolIndex[name]
	if !ok {
		log.Warn("agent.tool.unknown", slog.String("tool", name))
		return fmt.Sprintf("Error: unknown tool %q", name)
	}

	input := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
			log.Warn("agent.tool.bad_arguments",
				slog.String("tool", name),
				slog.String("error", err.Error()),
			)
			return fmt.Sprintf("Error: arguments for %s are not valid JSON: %v", name, err)
		}
	}

	start := time.Now()
	result, err := tool.Call(ctx, input)
	durationMs := time.Since(start).Seconds() * 1000
	toolCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(telemetry.AttrToolName, name),
		attribute.Bool(telemetry.AttrToolSuccess, err == nil),
	))
	span.SetAttributes(
		attribute.Float64(telemetry.AttrToolDurationMs, durationMs),
		attribute.Bool(telemetry.AttrToolSuccess, err == nil),
	)
	a.emitter.Emit(ctx, core.NewEvent(core.EventToolCalled, a.Name(), task.ID,
		map[string]any{"tool": name, "success": err == nil}))
	if err == nil {
		a.emitLedgerEvent(ctx, task, name, input)
	}

	if err != nil {
		span.RecordError(err)
		log.Warn("agent.tool.error",
			slog.String("tool", name),
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		return fmt.Sprintf("Error from %s: %v", name, err)
	}
	log.Debug("agent.tool.done",
		slog.String("tool", name),
		slog.Float64("duration_ms", durationMs),
	)
	return result
}

// emitLedgerEvent mirrors ledger-visible tool effects so the archive
// can record message and conflict activity per session.
func (a *Agent) emitLedgerEvent(ctx context.Context, task *core.Task, tool string, input map[string]any) {
	action, _ := input["action"].(string)
	switch {
	case tool == "team_message" && (action == "send_message" || action == "request_review" || action == "share_progress"):
		a.emitter.Emit(ctx, core.NewEvent(core.EventMessageSent, a.Name(), task.ID,
			map[string]any{"action": action, "to": input["to"]}))
	case tool == "integration" && action == "report_conflict":
		a.emitter.Emit(ctx, core.NewEvent(core.EventConflictFound, a.Name(), task.ID,
			map[string]any{"conflict": input["conflict"]}))
	}
}

// drainMailbox collects unread ledger mail into one user turn.
func (a *Agent) drainMailbox(log *slog.Logger) string {
	if a.hub == nil {
		return ""
	}
	msgs, err := a.hub.Messages(a.Name(), true)
	if err != nil {
		log.Warn("agent.mailbox.read_failed", slog.String("error", err.Error()))
		return ""
	}
	if len(msgs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("New messages from teammates:\n")
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		fmt.Fprintf(&b, "- From %s (%s): %s\n", m.From, m.Type, m.Body)
		ids = append(ids, m.ID)
	}
	if err := a.hub.MarkRead(ids...); err != nil {
		log.Warn("agent.mailbox.mark_failed", slog.String("error", err.Error()))
	}
	return b.String()
}

func (a *Agent) reportStatus(log *slog.Logger, state string) {
	if a.hub == nil {
		return
	}
	if err := a.hub.UpdateStatus(a.Name(), state, nil); err != nil {
		log.Warn("agent.status.update_failed", slog.String("error", err.Error()))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

var (
	agentMetricsOnce sync.Once
	llmLatencyMs     metric.Float64Histogram
	tokensCounter    metric.Int64Counter
	toolCounter      metric.Int64Counter
)

func initAgentMetrics() {
	agentMetricsOnce.Do(func() {
		meter := otel.Meter(tracerName)
		llmLatencyMs, _ = meter.Float64Histogram("crewforge.agent.llm.latency_ms")
		tokensCounter, _ = meter.Int64Counter("crewforge.agent.llm.tokens")
		toolCounter, _ = meter.Int64Counter("crewforge.agent.tool.count")
	})
}
