package core

import "context"

// Tool is a capability an agent can invoke during its run loop.
// Tools in this harness are in-process closures over the shared ledger.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input map[string]any) (string, error)
}

// Agent is the minimal executable unit of the harness.
type Agent interface {
	Name() string
	Role() string
	Run(ctx context.Context, task *Task) error
}
