// Copyright 2026 © The Crewforge Authors
// SPDX-License-Identifier: Apache-2.0

package gemini

import (
	"testing"

	"github.com/crewforge/crewforge/pkg/llm"
)

func TestWithModel(t *testing.T) {
	p := &Provider{model: DefaultModel}
	WithModel("gemini-1.5-pro")(p)
	if p.model != "gemini-1.5-pro" {
		t.Errorf("model = %s, want gemini-1.5-pro", p.model)
	}
	WithModel("")(p)
	if p.model != "gemini-1.5-pro" {
		t.Error("empty model option should be a no-op")
	}
}

func TestConvertMessages(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are the backend developer"},
		{Role: llm.RoleUser, Content: "Begin"},
		{Role: llm.RoleAssistant, Content: "Starting on the API"},
	}

	contents, system := convertMessages(messages)
	if system != "You are the backend developer" {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 2 {
		t.Fatalf("contents = %d, want 2 (system extracted)", len(contents))
	}
	if contents[1].Role != "model" {
		t.Errorf("assistant role = %q, want model", contents[1].Role)
	}
}

func TestConvertToolResult(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleTool, ToolCallID: "acquire_lock", Content: `{"granted": true}`},
		{Role: llm.RoleTool, ToolCallID: "team_message", Content: "sent"},
	}
	contents, _ := convertMessages(messages)
	if len(contents) != 2 {
		t.Fatalf("contents = %d, want 2", len(contents))
	}
	fr := contents[0].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "acquire_lock" {
		t.Fatalf("function response = %+v", fr)
	}
	// Non-JSON tool output is wrapped.
	fr = contents[1].Parts[0].FunctionResponse
	if fr.Response["result"] != "sent" {
		t.Errorf("wrapped result = %v", fr.Response)
	}
}

func TestConvertTools(t *testing.T) {
	tools := []llm.Tool{{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        "request_file_lock",
			Description: "Request exclusive access to a file",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string"},
				},
			},
		},
	}}

	decls := convertTools(tools)
	if len(decls) != 1 {
		t.Fatalf("declarations = %d, want 1", len(decls))
	}
	if decls[0].Name != "request_file_lock" {
		t.Errorf("name = %s", decls[0].Name)
	}
}
