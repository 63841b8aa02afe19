// Copyright 2026 © The Crewforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory stores per-agent conversation transcripts so an
// agent's context survives across loop iterations and sessions.
package memory

import (
	"context"
	"time"
)

// ConversationMessage is one turn of an agent's transcript.
type ConversationMessage struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id"`
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Conversation stores and retrieves ordered message history keyed by
// session.
type Conversation interface {
	// Append adds a message to the session's transcript.
	Append(ctx context.Context, sessionID string, msg ConversationMessage) error

	// Messages returns the session's transcript in order, with the
	// configured truncation applied.
	Messages(ctx context.Context, sessionID string) ([]ConversationMessage, error)

	// Clear removes a session's transcript.
	Clear(ctx context.Context, sessionID string) error
}

// TruncationStrategy reduces a transcript while preserving context.
type TruncationStrategy interface {
	Truncate(ctx context.Context, messages []ConversationMessage) ([]ConversationMessage, error)
}

// Config tunes a Conversation implementation.
type Config struct {
	// TruncationStrategy bounds what Messages returns. Nil means no
	// truncation.
	TruncationStrategy TruncationStrategy
}

// WindowStrategy keeps the last MaxMessages entries, optionally
// pinning system messages so the persona brief is never dropped.
type WindowStrategy struct {
	MaxMessages        int
	KeepSystemMessages bool
}

// Truncate implements TruncationStrategy.
func (w *WindowStrategy) Truncate(_ context.Context, messages []ConversationMessage) ([]ConversationMessage, error) {
	if len(messages) <= w.MaxMessages {
		return messages, nil
	}
	if !w.KeepSystemMessages {
		return messages[len(messages)-w.MaxMessages:], nil
	}

	var system, rest []ConversationMessage
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	available := w.MaxMessages - len(system)
	if available < 0 {
		available = 0
	}
	if len(rest) > available {
		rest = rest[len(rest)-available:]
	}

	out := make([]ConversationMessage, 0, len(system)+len(rest))
	out = append(out, system...)
	out = append(out, rest...)
	return out, nil
}
