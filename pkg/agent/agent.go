// Package agent runs one persona against an LLM provider in a bounded
// tool-calling loop, coordinating with the rest of the crew through
// the shared ledger.
package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crewforge/crewforge/pkg/core"
	"github.com/crewforge/crewforge/pkg/ledger"
	"github.com/crewforge/crewforge/pkg/llm"
	"github.com/crewforge/crewforge/pkg/memory"
	"github.com/crewforge/crewforge/pkg/resilience"
	"github.com/crewforge/crewforge/pkg/roster"
	"github.com/crewforge/crewforge/pkg/tools"
)

// Agent is one crew member: a persona bound to a provider, a tool
// belt, a transcript store, and the ledger.
type Agent struct {
	persona     roster.Persona
	provider    llm.Provider
	model       string
	temperature float64
	hub         *ledger.Hub
	toolset     []tools.Tool
	toolIndex   map[string]tools.Tool
	memory      memory.Conversation
	retry       resilience.RetryConfig
	emitter     core.EventEmitter
	logger      *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent) error

var errMissingProvider = errors.New("agent provider is required")

// New creates an agent for a persona.
func New(persona roster.Persona, opts ...Option) (*Agent, error) {
	if err := persona.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		persona:   persona,
		toolIndex: make(map[string]tools.Tool),
		retry:     resilience.DefaultRetryConfig(),
		emitter:   core.NoopEventEmitter{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.provider == nil {
		return nil, errMissingProvider
	}
	if a.memory == nil {
		a.memory = memory.NewInMemoryConversation(memory.Config{
			TruncationStrategy: &memory.WindowStrategy{MaxMessages: 100, KeepSystemMessages: true},
		})
	}
	return a, nil
}

// WithProvider sets the LLM backend.
func WithProvider(p llm.Provider) Option {
	return func(a *Agent) error {
		a.provider = p
		return nil
	}
}

// WithModel sets the model name passed to the provider.
func WithModel(model string) Option {
	return func(a *Agent) error {
		a.model = model
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) error {
		a.temperature = t
		return nil
	}
}

// WithHub attaches the shared ledger.
func WithHub(hub *ledger.Hub) Option {
	return func(a *Agent) error {
		a.hub = hub
		return nil
	}
}

// WithTools sets the agent's tool belt.
func WithTools(ts ...tools.Tool) Option {
	return func(a *Agent) error {
		for _, t := range ts {
			if _, dup := a.toolIndex[t.Name()]; dup {
				return fmt.Errorf("duplicate tool %s", t.Name())
			}
			a.toolset = append(a.toolset, t)
			a.toolIndex[t.Name()] = t
		}
		return nil
	}
}

// WithMemory attaches a transcript store.
func WithMemory(m memory.Conversation) Option {
	return func(a *Agent) error {
		a.memory = m
		return nil
	}
}

// WithRetry overrides the provider-call retry policy.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(a *Agent) error {
		a.retry = rc
		return nil
	}
}

// WithEmitter attaches an event sink.
func WithEmitter(e core.EventEmitter) Option {
	return func(a *Agent) error {
		if e != nil {
			a.emitter = e
		}
		return nil
	}
}

// WithLogger sets the agent's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) error {
		if l != nil {
			a.logger = l
		}
		return nil
	}
}

// Name returns the persona's short name, used as ledger agent ID.
func (a *Agent) Name() string { return a.persona.Name }

// Role returns the persona's human-readable role.
func (a *Agent) Role() string { return a.persona.Role }

// Persona returns the agent's persona.
func (a *Agent) Persona() roster.Persona { return a.persona }

// definitions collects the function declarations for the tool belt.
func (a *Agent) definitions() []llm.Tool {
	defs := make([]llm.Tool, 0, len(a.toolset))
	for _, t := range a.toolset {
		defs = append(defs, t.Definition())
	}
	return defs
}

// systemPrompt renders the persona into the model's standing brief.
func (a *Agent) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s on a collaborative development crew.\n\n", a.persona.Role)
	fmt.Fprintf(&b, "Goal: %s\n\n", a.persona.Goal)
	if a.persona.Backstory != "" {
		b.WriteString(a.persona.Backstory)
		b.WriteString("\n\n")
	}
	if len(a.persona.Deliverables) > 0 {
		b.WriteString("Deliverables (create in the shared workspace):\n")
		for _, d := range a.persona.Deliverables {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}
	if a.persona.Protocol != "" {
		fmt.Fprintf(&b, "Communication protocol: %s\n\n", a.persona.Protocol)
	}
	if a.persona.ExpectedOutput != "" {
		fmt.Fprintf(&b, "Expected output: %s\n\n", a.persona.ExpectedOutput)
	}
	b.WriteString("Coordinate through your tools: message teammates, share progress, " +
		"register integration points, and respect file locks. When your work is " +
		"complete, reply with a final summary instead of calling tools.")
	return b.String()
}
