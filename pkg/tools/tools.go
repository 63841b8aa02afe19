// Package tools implements the function tools agents call to act on
// the shared ledger and the workspace: writing files under lock,
// messaging teammates, registering integration points, checking
// project status, and deciding lock requests.
package tools

import (
	"fmt"

	"github.com/crewforge/crewforge/pkg/core"
	"github.com/crewforge/crewforge/pkg/llm"
)

// Tool extends core.Tool with the function declaration handed to the
// model.
type Tool interface {
	core.Tool
	Definition() llm.Tool
}

// definition builds an llm.Tool from a name, description and JSON
// Schema properties. Every tool schema here is a flat object.
func definition(name, description string, properties map[string]any, required ...string) llm.Tool {
	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// str pulls a string argument out of a tool input.
func str(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

// strOr pulls a string argument with a fallback.
func strOr(input map[string]any, key, fallback string) string {
	if v := str(input, key); v != "" {
		return v
	}
	return fallback
}

// object pulls a nested object argument out of a tool input.
func object(input map[string]any, key string) map[string]any {
	if v, ok := input[key].(map[string]any); ok {
		return v
	}
	return nil
}

// missingArg is the uniform complaint for absent required arguments.
func missingArg(tool, arg string) error {
	return fmt.Errorf("%s: missing required argument %q", tool, arg)
}
