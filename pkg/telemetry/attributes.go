// Copyright 2026 © The Crewforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration with rich attributes
// for agent observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Crewforge agent telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Agent attributes
	AttrAgentName      = "crewforge.agent.name"
	AttrAgentRole      = "crewforge.agent.role"
	AttrAgentRunID     = "crewforge.agent.run_id"
	AttrAgentIteration = "crewforge.agent.iteration"
	AttrAgentMaxIter   = "crewforge.agent.max_iterations"

	// Ledger attributes
	AttrLedgerPath      = "crewforge.ledger.path"
	AttrLedgerOperation = "crewforge.ledger.operation"
	AttrLockPath        = "crewforge.lock.path"
	AttrLockOwner       = "crewforge.lock.owner"
	AttrRequestID       = "crewforge.lock.request_id"

	// Tool attributes
	AttrToolName       = "crewforge.tool.name"
	AttrToolDurationMs = "crewforge.tool.duration_ms"
	AttrToolSuccess    = "crewforge.tool.success"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
)

// AgentAttributes builds the standard attribute set for agent spans.
func AgentAttributes(name, role, runID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrAgentName, name),
		attribute.String(AttrAgentRole, role),
		attribute.String(AttrAgentRunID, runID),
	}
}

// LockAttributes builds the standard attribute set for lock spans.
func LockAttributes(path, owner string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLockPath, path),
		attribute.String(AttrLockOwner, owner),
	}
}
